package profile

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUpstreamTimeout is returned when a bounded external call ran out of time.
	ErrUpstreamTimeout = errors.New("upstream call timed out")
	// ErrConcurrentModification is returned when exclusive access to a profile
	// could not be obtained in time.
	ErrConcurrentModification = errors.New("profile is being modified concurrently")
	// ErrNotFound is returned by stores and the pipeline for unknown profile ids.
	ErrNotFound = errors.New("profile not found")
)

// ExtractionError reports that a source adapter could not produce a fragment.
type ExtractionError struct {
	Platform Platform
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s profile: %v", e.Platform, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EnhancementError reports a failed enhancement. Profile is an untouched copy
// of the input so callers can fall back to the unified data.
type EnhancementError struct {
	Profile *UnifiedProfile
	Err     error
}

func (e *EnhancementError) Error() string {
	return fmt.Sprintf("enhancing profile: %v", e.Err)
}

func (e *EnhancementError) Unwrap() error { return e.Err }

// Timeout maps context deadline errors onto ErrUpstreamTimeout and keeps the
// original error in the chain. Other errors are returned unchanged.
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	return err
}

// IsRetryable reports whether the caller may resubmit the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrConcurrentModification)
}
