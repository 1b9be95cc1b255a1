package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/profile"
)

var (
	//go:embed cv_prompt.md
	cvPromptTemplate string
	//go:embed readme_prompt.md
	readmePromptTemplate string
)

const extractSystemPrompt = "You extract structured data from documents. You answer with JSON only and never invent facts."

// SourceExtractor implements Extractor on top of a Generator.
type SourceExtractor struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

type cvResponse struct {
	Name       string               `mapstructure:"name"`
	Summary    string               `mapstructure:"summary"`
	Email      string               `mapstructure:"email"`
	Phone      string               `mapstructure:"phone"`
	Skills     []string             `mapstructure:"skills"`
	Experience []profile.Experience `mapstructure:"experience"`
	Projects   []profile.Project    `mapstructure:"projects"`
	Education  []profile.Education  `mapstructure:"education"`
}

func NewExtractor(generator Generator, log *zap.Logger, maxLogLength int) *SourceExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &SourceExtractor{generator: generator, logger: log, maxLogLen: maxLogLength}
}

// ExtractCV asks the model to structure plain resume text.
func (x *SourceExtractor) ExtractCV(ctx context.Context, text string) (*profile.CVProfile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("resume text is empty")
	}

	var resp cvResponse
	if err := x.generate(ctx, strings.ReplaceAll(cvPromptTemplate, "{{CV_TEXT}}", text), &resp); err != nil {
		return nil, err
	}

	cv := &profile.CVProfile{
		Fragment: profile.Fragment{
			Name:       strings.TrimSpace(resp.Name),
			Summary:    strings.TrimSpace(resp.Summary),
			Skills:     nonBlank(resp.Skills),
			Experience: keepExperience(resp.Experience),
			Projects:   keepProjects(resp.Projects),
		},
		Extras: profile.CVExtras{
			Email:     strings.TrimSpace(resp.Email),
			Phone:     strings.TrimSpace(resp.Phone),
			Education: resp.Education,
		},
	}

	return cv, nil
}

// ParseReadme asks the model to pull a summary, tech stack and projects out
// of a profile README.
func (x *SourceExtractor) ParseReadme(ctx context.Context, readme string) (*Readme, error) {
	readme = strings.TrimSpace(readme)
	if readme == "" {
		return nil, errors.New("readme is empty")
	}

	var out Readme
	if err := x.generate(ctx, strings.ReplaceAll(readmePromptTemplate, "{{README}}", readme), &out); err != nil {
		return nil, err
	}

	out.Summary = strings.TrimSpace(out.Summary)
	out.TechStack = nonBlank(out.TechStack)
	out.Projects = keepProjects(out.Projects)

	return &out, nil
}

func (x *SourceExtractor) generate(ctx context.Context, prompt string, out any) error {
	if x.generator == nil {
		return errors.New("text generator is not configured")
	}

	log := logger.WithFields(x.logger, zap.String(logger.FieldModel, x.generator.Model()))
	log.Debug("extract request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, x.maxLogLen)),
	)

	raw, err := x.generator.GenerateContent(ctx, extractSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("generate extraction: %w", err)
	}

	log.Debug("extract response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, x.maxLogLen)),
	)

	return decodeResponse(raw, out)
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// keepExperience drops entries without a title, which the model emits for
// sections it could not attribute.
func keepExperience(entries []profile.Experience) []profile.Experience {
	out := make([]profile.Experience, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func keepProjects(projects []profile.Project) []profile.Project {
	out := make([]profile.Project, 0, len(projects))
	for _, p := range projects {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		p.Technologies = nonBlank(p.Technologies)
		if p.URL = strings.TrimSpace(p.URL); p.URL != "" && profile.Validator().Var(p.URL, "url") != nil {
			p.URL = ""
		}
		out = append(out, p)
	}
	return out
}
