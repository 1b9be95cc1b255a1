package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/ai"
	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/sources"
	"github.com/spigell/profile-fusion/internal/store"
)

const defaultEnhanceTimeout = 2 * time.Minute

var (
	// ErrInvalidID is returned for blank profile ids.
	ErrInvalidID = errors.New("profile id is required")
	// ErrAlreadyExists is returned by Create for a taken profile id.
	ErrAlreadyExists = errors.New("profile already exists")
	// ErrEnhancerDisabled is returned when no language model is configured.
	ErrEnhancerDisabled = errors.New("enhancement is not configured")

	errMissingRequest = errors.New("source request is required")
)

// SourceExtractor produces fragments for source requests.
type SourceExtractor interface {
	Extract(ctx context.Context, req sources.Request) (profile.SourceProfile, error)
}

// Options tunes the service.
type Options struct {
	EnhanceTimeout time.Duration
}

// Service runs the add-source and enhance flows. Every read-merge-write of a
// profile happens under the profile's lock; extraction and model calls run
// outside it.
type Service struct {
	store          store.Store
	locker         store.Locker
	sources        SourceExtractor
	enhancer       ai.Enhancer
	enhanceTimeout time.Duration
	logger         *zap.Logger

	now   func() time.Time
	newID func() string

	jobs sync.WaitGroup
}

func New(st store.Store, locker store.Locker, src SourceExtractor, enhancer ai.Enhancer, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.EnhanceTimeout <= 0 {
		opts.EnhanceTimeout = defaultEnhanceTimeout
	}

	return &Service{
		store:          st,
		locker:         locker,
		sources:        src,
		enhancer:       enhancer,
		enhanceTimeout: opts.EnhanceTimeout,
		logger:         log,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// Create stores an empty profile. A blank id is replaced with a new UUID.
func (s *Service) Create(ctx context.Context, id string) (*profile.UnifiedProfile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.newID()
	}

	var created *profile.UnifiedProfile
	err := s.withLock(ctx, id, func() error {
		existing, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}

		created = profile.New(id, s.now())
		return s.store.Save(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	logger.WithProfile(s.logger, id, "").Info("profile created")
	return created, nil
}

// Get returns the stored profile or profile.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*profile.UnifiedProfile, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, profile.ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]store.Summary, error) {
	return s.store.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	err = s.withLock(ctx, id, func() error {
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.WithProfile(s.logger, id, "").Info("profile deleted")
	return nil
}

// AddSource extracts a fragment for req and merges it into the profile,
// creating the profile on first reference. Nothing is saved when extraction
// fails.
func (s *Service) AddSource(ctx context.Context, id string, req sources.Request) (*profile.UnifiedProfile, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errMissingRequest
	}

	log := logger.WithProfile(s.logger, id, req.Platform().String())

	fragment, err := s.sources.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	var unified *profile.UnifiedProfile
	err = s.withLock(ctx, id, func() error {
		existing, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}

		unified = profile.Unify(id, existing, fragment, s.now())
		return s.store.Save(ctx, unified)
	})
	if err != nil {
		return nil, err
	}

	log.Info("source merged",
		zap.Int("skills", len(unified.Skills)),
		zap.Int("experience", len(unified.Experience)),
		zap.Int("projects", len(unified.Projects)),
		zap.Int("sources", len(unified.SourceHistory)),
	)

	return unified, nil
}

// Enhance polishes the stored profile. With persist set the result is
// adopted as the new canonical state, provided the profile did not change
// while the model was working.
func (s *Service) Enhance(ctx context.Context, id string, persist bool) (*profile.EnhancedProfile, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if s.enhancer == nil {
		return nil, ErrEnhancerDisabled
	}

	var snapshot *profile.UnifiedProfile
	err = s.withLock(ctx, id, func() error {
		p, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return profile.ErrNotFound
		}
		snapshot = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	enhanceCtx, cancel := context.WithTimeout(ctx, s.enhanceTimeout)
	defer cancel()

	enhanced, err := s.enhancer.Enhance(enhanceCtx, snapshot)
	if err != nil {
		return nil, err
	}

	if !persist {
		return enhanced, nil
	}

	if err := s.SaveEnhanced(ctx, enhanced); err != nil {
		return nil, err
	}
	return enhanced, nil
}

// SaveEnhanced adopts a previously produced enhancement as the canonical
// profile. It fails with profile.ErrConcurrentModification when the profile
// changed after the enhancement was produced.
func (s *Service) SaveEnhanced(ctx context.Context, enhanced *profile.EnhancedProfile) error {
	if enhanced == nil {
		return errors.New("enhanced profile is required")
	}
	id, err := normalizeID(enhanced.ID)
	if err != nil {
		return err
	}

	err = s.withLock(ctx, id, func() error {
		current, err := s.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return profile.ErrNotFound
		}
		if !current.UpdatedAt.Equal(enhanced.UpdatedAt) {
			return fmt.Errorf("%w: profile changed during enhancement", profile.ErrConcurrentModification)
		}
		return s.store.Save(ctx, profile.Adopt(current, enhanced, s.now()))
	})
	if err != nil {
		return err
	}

	logger.WithProfile(s.logger, id, "").Info("enhanced profile saved")
	return nil
}

func (s *Service) withLock(ctx context.Context, id string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	return fn()
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidID
	}
	return id, nil
}
