package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/sources"
	"github.com/spigell/profile-fusion/internal/store"
)

// AddSourceAsync records a job and runs AddSource in the background. The job
// keeps running when ctx is cancelled after the call returns.
func (s *Service) AddSourceAsync(ctx context.Context, id string, req sources.Request) (*store.Job, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errMissingRequest
	}

	now := s.now()
	job := store.Job{
		ID:        s.newID(),
		ProfileID: id,
		Platform:  req.Platform(),
		Status:    store.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runJob(runCtx, job, req)
	}()

	return &job, nil
}

// Job returns a tracked job or store.ErrJobNotFound.
func (s *Service) Job(ctx context.Context, id string) (*store.Job, error) {
	return s.store.GetJob(ctx, id)
}

// Wait blocks until all background jobs finished.
func (s *Service) Wait() {
	s.jobs.Wait()
}

func (s *Service) runJob(ctx context.Context, job store.Job, req sources.Request) {
	log := logger.WithFields(
		logger.WithProfile(s.logger, job.ProfileID, job.Platform.String()),
		zap.String(logger.FieldJobID, job.ID),
	)

	job.Status = store.JobRunning
	job.UpdatedAt = s.now()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		log.Error("failed to mark job running", zap.Error(err))
	}

	err := s.addSourceRecovered(ctx, job.ProfileID, req)

	job.UpdatedAt = s.now()
	if err != nil {
		job.Status = store.JobFailed
		job.Error = err.Error()
		job.Retryable = profile.IsRetryable(err)
		log.Warn("job failed", zap.Error(err), zap.Bool("retryable", job.Retryable))
	} else {
		job.Status = store.JobCompleted
		log.Info("job completed")
	}

	if err := s.store.UpdateJob(ctx, job); err != nil {
		log.Error("failed to record job result", zap.Error(err))
	}
}

// addSourceRecovered turns a panic in an adapter into a job error, so one
// broken document cannot take the server down.
func (s *Service) addSourceRecovered(ctx context.Context, id string, req sources.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extracting %s source panicked: %v", req.Platform(), r)
		}
	}()

	_, err = s.AddSource(ctx, id, req)
	return err
}
