package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRetriesExhausted wraps the last error of an operation that failed on every attempt
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrTaskPanicked is recorded for a batch task that panicked
	ErrTaskPanicked = errors.New("batch task panicked")
)
