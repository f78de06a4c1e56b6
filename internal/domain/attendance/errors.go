package attendance

import (
	"errors"
	"fmt"
)

// Attendance domain errors
var (
	// State machine errors
	ErrAlreadyClockedIn = errors.New("employee is already clocked in")
	ErrNotClockedIn     = errors.New("employee is not clocked in")

	// Interval and query errors
	ErrInvalidInterval = errors.New("clock out must be after clock in")
	ErrInvalidRange    = errors.New("start date must not be after end date")
	ErrInvalidInput    = errors.New("invalid input")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("attendance store unavailable")
	ErrCancelled        = errors.New("operation cancelled")

	ErrRecordNotFound = errors.New("attendance record not found")
)

// IsRetryable reports whether err may succeed when the same call is repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrCancelled)
}

// Cancelled marks a context error as ErrCancelled while keeping the cause.
func Cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
