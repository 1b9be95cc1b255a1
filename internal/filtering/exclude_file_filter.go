package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/profile"
)

type excludeFileFilter struct {
	disabled bool
	reason   string
	path     string
}

// NewExcludeFile creates a filter that removes skills listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, s *Skills) (*Skills, Step, error) {
	initial := s.Len()
	if f.path == "" {
		return s, Step{Initial: initial, Dropped: 0, Left: s.Len()}, nil
	}

	excluded, err := ReadExcludeFile(f.path)
	if err != nil {
		return s, Step{}, fmt.Errorf("getting excluded skills from file: %w", err)
	}

	removed := s.Keep(func(skill string) bool {
		_, blocked := excluded[profile.SkillKey(skill)]
		return !blocked
	})

	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding skills based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_skills", removed),
			zap.Int("skills_left", s.Len()),
		)
	}

	return s, Step{Initial: initial, Dropped: len(removed), Left: s.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
