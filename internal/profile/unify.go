package profile

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const paragraphSeparator = "\n\n"

// Unify merges fragment into existing and returns the resulting profile.
// existing is never modified; a nil existing seeds an empty profile with
// profileID. at is recorded in the source history.
func Unify(profileID string, existing *UnifiedProfile, fragment SourceProfile, at time.Time) *UnifiedProfile {
	var result *UnifiedProfile
	if existing == nil {
		result = New(profileID, at)
	} else {
		result = existing.Clone()
	}

	if fragment == nil {
		return result
	}

	common := fragment.Common()

	result.Name = mergeName(result.Name, common.Name)
	result.Summary = mergeSummary(result.Summary, common.Summary)
	result.Skills = MergeSkills(result.Skills, common.Skills)

	for _, exp := range common.Experience {
		result.Experience = mergeExperience(result.Experience, exp)
	}

	for _, pr := range common.Projects {
		result.Projects = mergeProject(result.Projects, pr)
	}

	applyExtras(&result.Extras, fragment)

	result.SourceHistory = append(result.SourceHistory, SourceRecord{
		Platform:  fragment.Platform(),
		Timestamp: at,
	})
	result.UpdatedAt = at

	return result
}

func mergeName(current, incoming string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	return strings.TrimSpace(incoming)
}

func mergeSummary(current, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	current = strings.TrimSpace(current)

	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}

	if containsParagraphs(current, incoming) {
		return current
	}

	return current + paragraphSeparator + incoming
}

// containsParagraphs reports whether text already holds part as a whole
// run of paragraphs.
func containsParagraphs(text, part string) bool {
	switch {
	case text == part:
		return true
	case strings.HasPrefix(text, part+paragraphSeparator):
		return true
	case strings.HasSuffix(text, paragraphSeparator+part):
		return true
	default:
		return strings.Contains(text, paragraphSeparator+part+paragraphSeparator)
	}
}

// SkillKey is the identity used to compare skills and technologies.
func SkillKey(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// MergeSkills appends the incoming skills that are not yet present. The first
// seen casing of each skill is kept and blank entries are dropped.
func MergeSkills(current, incoming []string) []string {
	seen := make(map[string]struct{}, len(current)+len(incoming))
	out := make([]string, 0, len(current)+len(incoming))

	for _, list := range [][]string{current, incoming} {
		for _, skill := range list {
			key := SkillKey(skill)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(skill))
		}
	}

	return out
}

// ExperienceKey is the dedup key of a work history entry.
func ExperienceKey(e Experience) string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(e.Title)),
		strings.ToLower(strings.TrimSpace(e.Company)),
		strings.ToLower(strings.TrimSpace(e.Start)),
	)
}

// ProjectKey is the dedup key of a project entry.
func ProjectKey(p Project) string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// mergeExperience replaces a matching entry only when the incoming
// description is longer.
func mergeExperience(entries []Experience, incoming Experience) []Experience {
	key := ExperienceKey(incoming)
	for i, existing := range entries {
		if ExperienceKey(existing) != key {
			continue
		}
		if descriptionLength(incoming.Description) > descriptionLength(existing.Description) {
			entries[i] = incoming
		}
		return entries
	}
	return append(entries, incoming)
}

// descriptionLength counts characters, not bytes, so non-ASCII text compares fairly.
func descriptionLength(description string) int {
	return utf8.RuneCountInString(strings.TrimSpace(description))
}

func mergeProject(projects []Project, incoming Project) []Project {
	key := ProjectKey(incoming)
	for i, existing := range projects {
		if ProjectKey(existing) != key {
			continue
		}
		if descriptionLength(incoming.Description) > descriptionLength(existing.Description) {
			existing.Description = incoming.Description
		}
		if strings.TrimSpace(existing.URL) == "" {
			existing.URL = incoming.URL
		}
		existing.Technologies = MergeSkills(existing.Technologies, incoming.Technologies)
		projects[i] = existing
		return projects
	}

	incoming.Technologies = MergeSkills(nil, incoming.Technologies)
	return append(projects, incoming)
}

func applyExtras(extras *Extras, fragment SourceProfile) {
	switch f := fragment.(type) {
	case *CVProfile:
		extras.CV = Extras{CV: &f.Extras}.clone().CV
	case *LinkedInProfile:
		extras.LinkedIn = Extras{LinkedIn: &f.Extras}.clone().LinkedIn
	case *GitHubProfile:
		extras.GitHub = Extras{GitHub: &f.Extras}.clone().GitHub
	default:
		panic(fmt.Sprintf("profile: unknown source profile %T", fragment))
	}
}
