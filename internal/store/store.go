package store

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/profile-fusion/internal/profile"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ProfileStore persists unified profiles keyed by profile id.
type ProfileStore interface {
	// Load returns (nil, nil) when no profile exists for id.
	Load(ctx context.Context, id string) (*profile.UnifiedProfile, error)
	Save(ctx context.Context, p *profile.UnifiedProfile) error
	// Delete returns profile.ErrNotFound when no profile exists for id.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
}

// JobStore tracks asynchronous add-source requests.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
}

// Store is a backend that holds both profiles and jobs.
type Store interface {
	ProfileStore
	JobStore
	Close() error
}

// Summary is the listing view of a profile.
type Summary struct {
	ID        string    `json:"profile_id"`
	Name      string    `json:"name,omitempty"`
	Sources   int       `json:"sources"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one tracked pipeline request.
type Job struct {
	ID        string           `json:"job_id"`
	ProfileID string           `json:"profile_id"`
	Platform  profile.Platform `json:"platform"`
	Status    JobStatus        `json:"status"`
	Error     string           `json:"error,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func summarize(p *profile.UnifiedProfile) Summary {
	return Summary{
		ID:        p.ID,
		Name:      p.Name,
		Sources:   len(p.SourceHistory),
		UpdatedAt: p.UpdatedAt,
	}
}

func validateProfile(p *profile.UnifiedProfile) error {
	if p == nil {
		return errors.New("profile is nil")
	}
	return p.Validate()
}
