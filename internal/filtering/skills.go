package filtering

import (
	"sort"
	"strings"
)

// Skills is the list the filters operate on.
type Skills struct {
	Items []string
}

func NewSkills(items []string) *Skills {
	return &Skills{Items: append([]string(nil), items...)}
}

func (s *Skills) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Keep retains the items for which keep returns true and returns the dropped ones.
func (s *Skills) Keep(keep func(string) bool) []string {
	kept := s.Items[:0]
	var dropped []string
	for _, item := range s.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item)
	}
	s.Items = kept
	return dropped
}

// Sort orders the items case-insensitively, keeping the original order of equal keys.
func (s *Skills) Sort() {
	sort.SliceStable(s.Items, func(i, j int) bool {
		return strings.ToLower(s.Items[i]) < strings.ToLower(s.Items[j])
	})
}
