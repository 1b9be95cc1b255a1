package ai

import (
	"context"

	"github.com/spigell/profile-fusion/internal/profile"
)

// Generator is the text-generation capability behind the enhancer and the
// extractors. Implementations return the raw model output, expected to be JSON.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Enhancer produces a polished snapshot of a unified profile. On failure it
// returns a *profile.EnhancementError carrying an untouched copy of the input.
type Enhancer interface {
	Enhance(ctx context.Context, p *profile.UnifiedProfile) (*profile.EnhancedProfile, error)
}

// Readme holds what the model could parse out of a GitHub profile README.
type Readme struct {
	Summary   string            `mapstructure:"summary"`
	TechStack []string          `mapstructure:"tech_stack"`
	Projects  []profile.Project `mapstructure:"projects" validate:"dive"`
}

// Extractor turns unstructured source text into structured fragments.
type Extractor interface {
	ExtractCV(ctx context.Context, text string) (*profile.CVProfile, error)
	ParseReadme(ctx context.Context, readme string) (*Readme, error)
}
