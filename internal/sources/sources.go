package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/profile"
)

const defaultTimeout = 60 * time.Second

// Request is the input of a source adapter. The set of implementations is
// closed: CVRequest, LinkedInRequest and GitHubRequest.
type Request interface {
	Platform() profile.Platform
	request()
}

// CVRequest carries a resume document (.pdf, .docx, .txt or .md), either as
// a path on disk or as uploaded bytes with their file name.
type CVRequest struct {
	Path string
	Name string
	Data []byte
}

// LinkedInRequest points at a public LinkedIn profile page.
type LinkedInRequest struct {
	URL string
}

// GitHubRequest points at a GitHub account, e.g. https://github.com/octocat.
type GitHubRequest struct {
	URL string
}

func (CVRequest) Platform() profile.Platform       { return profile.PlatformCV }
func (LinkedInRequest) Platform() profile.Platform { return profile.PlatformLinkedIn }
func (GitHubRequest) Platform() profile.Platform   { return profile.PlatformGitHub }

func (CVRequest) request()       {}
func (LinkedInRequest) request() {}
func (GitHubRequest) request()   {}

// Adapter turns a request into a validated fragment.
type Adapter interface {
	Platform() profile.Platform
	Extract(ctx context.Context, req Request) (profile.SourceProfile, error)
}

// Registry dispatches requests to the adapter of their platform, bounds the
// call with a timeout and validates the produced fragment.
type Registry struct {
	adapters map[profile.Platform]Adapter
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRegistry(log *zap.Logger, timeout time.Duration, adapters ...Adapter) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := &Registry{
		adapters: make(map[profile.Platform]Adapter, len(adapters)),
		timeout:  timeout,
		logger:   log,
	}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Platform()] = a
		}
	}
	return r
}

// Platforms lists the platforms that have an adapter configured.
func (r *Registry) Platforms() []profile.Platform {
	out := make([]profile.Platform, 0, len(r.adapters))
	for _, p := range profile.Platforms {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Extract runs the adapter for req. Every failure is a *profile.ExtractionError;
// deadline overruns also match profile.ErrUpstreamTimeout.
func (r *Registry) Extract(ctx context.Context, req Request) (profile.SourceProfile, error) {
	platform, err := platformOf(req)
	if err != nil {
		return nil, err
	}

	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, &profile.ExtractionError{Platform: platform, Err: errors.New("no adapter configured")}
	}

	log := logger.WithProfile(r.logger, "", platform.String())

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	fragment, err := adapter.Extract(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}
		log.Warn("extraction failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, extractionError(platform, profile.Timeout(err))
	}

	if fragment == nil {
		return nil, extractionError(platform, errors.New("adapter returned no fragment"))
	}
	if fragment.Platform() != platform {
		return nil, extractionError(platform, fmt.Errorf("adapter returned a %s fragment", fragment.Platform()))
	}
	if err := profile.Validate(fragment); err != nil {
		return nil, extractionError(platform, err)
	}

	common := fragment.Common()
	log.Info("fragment extracted",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("skills", len(common.Skills)),
		zap.Int("experience", len(common.Experience)),
		zap.Int("projects", len(common.Projects)),
	)

	return fragment, nil
}

func platformOf(req Request) (profile.Platform, error) {
	switch req.(type) {
	case CVRequest:
		return profile.PlatformCV, nil
	case LinkedInRequest:
		return profile.PlatformLinkedIn, nil
	case GitHubRequest:
		return profile.PlatformGitHub, nil
	case nil:
		return "", errors.New("source request is required")
	default:
		return "", fmt.Errorf("unsupported source request %T", req)
	}
}

func extractionError(platform profile.Platform, err error) error {
	return &profile.ExtractionError{Platform: platform, Err: err}
}
