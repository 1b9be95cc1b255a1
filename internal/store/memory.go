package store

import (
	"context"
	"sort"
	"sync"

	"github.com/spigell/profile-fusion/internal/profile"
)

// Memory keeps profiles and jobs in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*profile.UnifiedProfile
	jobs     map[string]Job
}

func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*profile.UnifiedProfile),
		jobs:     make(map[string]Job),
	}
}

func (m *Memory) Load(_ context.Context, id string) (*profile.UnifiedProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (m *Memory) Save(_ context.Context, p *profile.UnifiedProfile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[p.ID] = p.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return profile.ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, summarize(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) CreateJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) UpdateJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (m *Memory) Close() error { return nil }
