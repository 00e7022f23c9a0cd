package service

import (
	"errors"
	"fmt"

	"coach-sync-api/modules/calendar/provider"
)

// ErrSessionNotFound means the job's session was deleted after the job was queued.
var ErrSessionNotFound = errors.New("session not found")

// ErrConnectionInactive means the job's connection is deactivated or has sync turned off.
var ErrConnectionInactive = errors.New("calendar connection inactive")

// nonRetryableError marks a failure that retrying cannot fix.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func nonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

func nonRetryablef(format string, args ...any) error {
	return nonRetryable(fmt.Errorf(format, args...))
}

// IsNonRetryable reports whether a job failing with err should fail immediately.
func IsNonRetryable(err error) bool {
	var nr *nonRetryableError
	if errors.As(err, &nr) {
		return true
	}
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrConnectionInactive) ||
		errors.Is(err, provider.ErrConnectionUnusable) ||
		errors.Is(err, provider.ErrUnsupportedProvider)
}
