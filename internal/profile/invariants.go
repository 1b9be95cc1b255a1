package profile

import (
	"errors"
	"fmt"
	"strings"
)

var errNilProfile = errors.New("profile is nil")

// Validate checks the invariants every unified profile must hold.
func (p *UnifiedProfile) Validate() error {
	return checkInvariants(p)
}

func checkInvariants(p *UnifiedProfile) error {
	if p == nil {
		return errNilProfile
	}

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("profile id is empty")
	}

	skills := make(map[string]string, len(p.Skills))
	for _, s := range p.Skills {
		key := SkillKey(s)
		if key == "" {
			return errors.New("blank skill")
		}
		if prev, ok := skills[key]; ok {
			return fmt.Errorf("duplicate skill %q (already have %q)", s, prev)
		}
		skills[key] = s
	}

	experience := make(map[string]struct{}, len(p.Experience))
	for _, e := range p.Experience {
		key := ExperienceKey(e)
		if _, ok := experience[key]; ok {
			return fmt.Errorf("duplicate experience %q at %q since %q", e.Title, e.Company, e.Start)
		}
		experience[key] = struct{}{}
	}

	projects := make(map[string]struct{}, len(p.Projects))
	for _, pr := range p.Projects {
		key := ProjectKey(pr)
		if _, ok := projects[key]; ok {
			return fmt.Errorf("duplicate project %q", pr.Name)
		}
		projects[key] = struct{}{}
	}

	return nil
}
