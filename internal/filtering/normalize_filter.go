package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/profile"
)

type normalizeFilter struct {
	disabled bool
	reason   string
}

// NewNormalize creates a filter that collapses whitespace and drops
// case-insensitive duplicates, keeping the first casing.
func NewNormalize() Filter {
	return &normalizeFilter{}
}

func (f *normalizeFilter) Name() string { return "normalize" }

func (f *normalizeFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *normalizeFilter) IsEnabled() bool { return !f.disabled }

func (f *normalizeFilter) Validate(*Config) error { return nil }

func (f *normalizeFilter) Apply(_ context.Context, deps Deps, s *Skills) (*Skills, Step, error) {
	initial := s.Len()

	for i, item := range s.Items {
		s.Items[i] = strings.Join(strings.Fields(item), " ")
	}

	merged := profile.MergeSkills(nil, s.Items)
	dropped := initial - len(merged)
	s.Items = merged

	if deps.Logger != nil && dropped > 0 {
		deps.Logger.Debug("dropping duplicate skills", zap.Int("dropped", dropped))
	}

	return s, Step{Initial: initial, Dropped: dropped, Left: s.Len()}, nil
}

func (f *normalizeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
