package filtering

import (
	"context"
	"strconv"
)

type sortFilter struct {
	disabled bool
	enabled  bool
}

// NewSort creates a step that orders skills alphabetically when Config.Sort is set.
func NewSort() Filter {
	return &sortFilter{}
}

func (f *sortFilter) Name() string { return "sort" }

func (f *sortFilter) Disable(string) { f.disabled = true }

func (f *sortFilter) IsEnabled() bool { return !f.disabled }

func (f *sortFilter) Validate(cfg *Config) error {
	f.enabled = cfg != nil && cfg.Sort
	return nil
}

func (f *sortFilter) Apply(_ context.Context, _ Deps, s *Skills) (*Skills, Step, error) {
	if f.enabled {
		s.Sort()
	}
	return s, Step{Initial: s.Len(), Dropped: 0, Left: s.Len()}, nil
}

func (f *sortFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"sort": strconv.FormatBool(f.enabled)},
	}
}
