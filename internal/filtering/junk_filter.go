package filtering

import (
	"context"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const defaultMaxSkillLength = 60

type junkFilter struct {
	disabled  bool
	reason    string
	maxLength int
}

// NewJunk creates a filter that removes entries which cannot be skills:
// overly long phrases and strings without a single letter or digit.
func NewJunk() Filter {
	return &junkFilter{}
}

func (f *junkFilter) Name() string { return "junk" }

func (f *junkFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *junkFilter) IsEnabled() bool { return !f.disabled }

func (f *junkFilter) Validate(cfg *Config) error {
	f.maxLength = defaultMaxSkillLength
	if cfg == nil || cfg.MaxLength == 0 {
		return nil
	}
	if cfg.MaxLength < 0 {
		return fmt.Errorf("max skill length must be positive, got %d", cfg.MaxLength)
	}
	f.maxLength = cfg.MaxLength
	return nil
}

func (f *junkFilter) Apply(_ context.Context, deps Deps, s *Skills) (*Skills, Step, error) {
	initial := s.Len()
	limit := f.maxLength
	if limit <= 0 {
		limit = defaultMaxSkillLength
	}

	dropped := s.Keep(func(skill string) bool {
		return utf8.RuneCountInString(skill) <= limit && hasAlnum(skill)
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("dropping junk skills", zap.Strings("skills", dropped))
	}

	return s, Step{Initial: initial, Dropped: len(dropped), Left: s.Len()}, nil
}

func (f *junkFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"max_length": strconv.Itoa(f.maxLength)},
	}
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
