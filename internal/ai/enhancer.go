package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/filtering"
	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/profile"
)

//go:embed enhance_prompt.md
var enhancePromptTemplate string

const (
	defaultMaxLogLength = 200

	enhanceSystemPrompt = "You are an editor of professional profiles. You answer with JSON only."
)

// EnhancerOptions tunes the profile enhancer.
type EnhancerOptions struct {
	// Skills configures the cleaning chain run on the returned skill list.
	Skills filtering.Config
	// Instructions are appended to the prompt as advisory user wishes.
	Instructions string
	// MaxLogLength limits prompt and response previews in debug logs.
	MaxLogLength int
	// Provider names the model vendor in logs.
	Provider string
}

// ProfileEnhancer implements Enhancer on top of a Generator.
type ProfileEnhancer struct {
	generator Generator
	logger    *zap.Logger
	opts      EnhancerOptions
	steps     func() []filtering.Filter
	now       func() time.Time
}

type enhancementResponse struct {
	Summary    string              `mapstructure:"summary" validate:"notblank"`
	Skills     []string            `mapstructure:"skills" validate:"min=1,dive,notblank"`
	Experience []refinedExperience `mapstructure:"experience" validate:"dive"`
	Projects   []refinedProject    `mapstructure:"projects" validate:"dive"`
}

type refinedExperience struct {
	Title       string `mapstructure:"title" validate:"notblank"`
	Company     string `mapstructure:"company"`
	Start       string `mapstructure:"start"`
	Description string `mapstructure:"description"`
}

type refinedProject struct {
	Name        string `mapstructure:"name" validate:"notblank"`
	Description string `mapstructure:"description"`
}

func NewEnhancer(generator Generator, log *zap.Logger, opts EnhancerOptions) *ProfileEnhancer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	return &ProfileEnhancer{
		generator: generator,
		logger:    log,
		opts:      opts,
		steps:     filtering.Default,
		now:       time.Now,
	}
}

// Enhance asks the model to polish p and validates the answer. p is never modified.
func (e *ProfileEnhancer) Enhance(ctx context.Context, p *profile.UnifiedProfile) (*profile.EnhancedProfile, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}

	snapshot := p.Clone()
	fail := func(err error) error {
		return &profile.EnhancementError{Profile: p.Clone(), Err: profile.Timeout(err)}
	}

	if e.generator == nil {
		return nil, fail(errors.New("text generator is not configured"))
	}

	log := logger.WithProfile(logger.WithAI(e.logger, e.opts.Provider, e.generator.Model()), snapshot.ID, "")

	prompt, err := buildEnhancePrompt(snapshot, e.opts.Instructions)
	if err != nil {
		return nil, fail(err)
	}

	log.Debug("enhance request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.opts.MaxLogLength)),
	)

	raw, err := e.generator.GenerateContent(ctx, enhanceSystemPrompt, prompt)
	if err != nil {
		return nil, fail(fmt.Errorf("generate enhancement: %w", err))
	}

	log.Debug("enhance response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.opts.MaxLogLength)),
	)

	var resp enhancementResponse
	if err := decodeResponse(raw, &resp); err != nil {
		return nil, fail(err)
	}

	if err := profile.Validator().Struct(&resp); err != nil {
		return nil, fail(fmt.Errorf("invalid enhancement: %w", err))
	}

	steps := e.steps()
	for _, name := range e.opts.Skills.Disabled {
		filtering.DisableByName(steps, name, "disabled in config")
	}
	log.Debug("skill filters", zap.Any("filters", filtering.Describe(steps)))

	cleaned, err := filtering.Run(ctx, &e.opts.Skills, filtering.Deps{Logger: log}, steps, filtering.NewSkills(resp.Skills))
	if err != nil {
		return nil, fail(fmt.Errorf("clean skills: %w", err))
	}
	if cleaned.Len() == 0 {
		return nil, fail(errors.New("no skills left after cleaning"))
	}

	enhanced := &profile.EnhancedProfile{
		UnifiedProfile: *snapshot,
		Model:          e.generator.Model(),
		EnhancedAt:     e.now(),
	}
	enhanced.Summary = strings.TrimSpace(resp.Summary)
	enhanced.Skills = cleaned.Items

	if err := refineExperience(enhanced.Experience, resp.Experience); err != nil {
		return nil, fail(err)
	}
	if err := refineProjects(enhanced.Projects, resp.Projects); err != nil {
		return nil, fail(err)
	}

	if err := enhanced.UnifiedProfile.Validate(); err != nil {
		return nil, fail(fmt.Errorf("enhanced profile is invalid: %w", err))
	}

	log.Info("profile enhanced",
		zap.Int("skills_before", len(snapshot.Skills)),
		zap.Int("skills_after", len(enhanced.Skills)),
	)

	return enhanced, nil
}

func refineExperience(entries []profile.Experience, refined []refinedExperience) error {
	index := make(map[string]int, len(entries))
	for i, exp := range entries {
		index[profile.ExperienceKey(exp)] = i
	}

	for _, r := range refined {
		key := profile.ExperienceKey(profile.Experience{Title: r.Title, Company: r.Company, Start: r.Start})
		i, ok := index[key]
		if !ok {
			return fmt.Errorf("enhancement refers to unknown experience %q at %q", r.Title, r.Company)
		}
		if desc := strings.TrimSpace(r.Description); desc != "" {
			entries[i].Description = desc
		}
	}

	return nil
}

func refineProjects(projects []profile.Project, refined []refinedProject) error {
	index := make(map[string]int, len(projects))
	for i, pr := range projects {
		index[profile.ProjectKey(pr)] = i
	}

	for _, r := range refined {
		i, ok := index[profile.ProjectKey(profile.Project{Name: r.Name})]
		if !ok {
			return fmt.Errorf("enhancement refers to unknown project %q", r.Name)
		}
		if desc := strings.TrimSpace(r.Description); desc != "" {
			projects[i].Description = desc
		}
	}

	return nil
}

func buildEnhancePrompt(p *profile.UnifiedProfile, instructions string) (string, error) {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return "", fmt.Errorf("marshal skills: %w", err)
	}
	experience, err := json.MarshalIndent(p.Experience, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal experience: %w", err)
	}
	projects, err := json.MarshalIndent(p.Projects, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal projects: %w", err)
	}

	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		instructions = "none"
	}

	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		summary = "(empty)"
	}

	prompt := strings.NewReplacer(
		"{{INSTRUCTIONS}}", instructions,
		"{{SUMMARY}}", summary,
		"{{SKILLS_JSON}}", string(skills),
		"{{EXPERIENCE_JSON}}", string(experience),
		"{{PROJECTS_JSON}}", string(projects),
	).Replace(enhancePromptTemplate)

	return prompt, nil
}
