package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an artifact, analysis or task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingDetail is returned when a property is analyzed before its detail was scraped.
	ErrMissingDetail = errors.New("property detail not scraped")

	// ErrMalformedResponse is returned when no JSON object can be pulled out of a scorer response.
	ErrMalformedResponse = errors.New("malformed scorer response")

	// ErrInvalidAnalysis is returned when a parsed analysis fails rubric validation.
	ErrInvalidAnalysis = errors.New("invalid analysis")

	ErrScrape     = errors.New("scrape failed")
	ErrExtraction = errors.New("document text extraction failed")

	// ErrNoProperties is returned when a listing yields zero property ids.
	ErrNoProperties = errors.New("no properties found in listing")

	// ErrNotReady is returned when a task result is requested before the task finished.
	ErrNotReady = errors.New("task not ready")

	// ErrTaskFailed wraps the stored cause of a failed task.
	ErrTaskFailed = errors.New("task failed")
)

// StageTimeoutError reports that a bounded stage call exceeded its limit.
type StageTimeoutError struct {
	Stage string
	Limit time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("stage %s exceeded its %s timeout", e.Stage, e.Limit)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match stage timeouts.
func (e *StageTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// StageTimeout converts a deadline error from a bounded call into a StageTimeoutError.
// Any other error is returned unchanged.
func StageTimeout(stage string, limit time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var ste *StageTimeoutError
	if errors.As(err, &ste) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &StageTimeoutError{Stage: stage, Limit: limit}
	}
	return err
}

// IsTimeout reports whether err is (or wraps) a StageTimeoutError.
func IsTimeout(err error) bool {
	var ste *StageTimeoutError
	return errors.As(err, &ste)
}
