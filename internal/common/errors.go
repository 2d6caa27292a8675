// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Queue errors.
	ErrInvalidTransition = errors.New("invalid queue status transition")

	// Classification errors.
	ErrMissingTransaction = errors.New("queue entry references missing transaction")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable marks an error as transient so the dispatcher retries it
// before failing the queue entry.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: true}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
