package profile

import (
	"strings"
	"time"
)

// Adopt returns a copy of current that takes over the polished fields of
// enhanced: summary, skills and the descriptions of entries that still exist
// in current. Entries the enhancement does not know about are kept as is.
func Adopt(current *UnifiedProfile, enhanced *EnhancedProfile, at time.Time) *UnifiedProfile {
	result := current.Clone()
	if result == nil || enhanced == nil {
		return result
	}

	if summary := strings.TrimSpace(enhanced.Summary); summary != "" {
		result.Summary = summary
	}

	if skills := MergeSkills(nil, enhanced.Skills); len(skills) > 0 {
		result.Skills = skills
	}

	refined := make(map[string]string, len(enhanced.Experience))
	for _, exp := range enhanced.Experience {
		refined[ExperienceKey(exp)] = exp.Description
	}
	for i, exp := range result.Experience {
		if desc, ok := refined[ExperienceKey(exp)]; ok && strings.TrimSpace(desc) != "" {
			result.Experience[i].Description = desc
		}
	}

	refined = make(map[string]string, len(enhanced.Projects))
	for _, pr := range enhanced.Projects {
		refined[ProjectKey(pr)] = pr.Description
	}
	for i, pr := range result.Projects {
		if desc, ok := refined[ProjectKey(pr)]; ok && strings.TrimSpace(desc) != "" {
			result.Projects[i].Description = desc
		}
	}

	result.UpdatedAt = at
	return result
}
