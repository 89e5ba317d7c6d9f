package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when no current user can be resolved.
	// It is never deferred: retrying cannot supply a missing identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistence marks a failed storage step.  It aborts the current
	// submission and triggers deferral.
	ErrPersistence = errors.New("persistence failure")

	// ErrDeferralFailed is returned when a failed submission could not be
	// handed to the retry queue either.
	ErrDeferralFailed = errors.New("deferral failed")

	// ErrDeferredProcessing is returned by ReprocessBooking when the one
	// additional attempt fails.
	ErrDeferredProcessing = errors.New("deferred processing failure")
)

// PersistenceError records which step of the reconciliation failed.  It
// matches ErrPersistence with errors.Is and exposes the storage error
// through errors.Unwrap.
type PersistenceError struct {
	Step string
	Key  string
	Err  error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("persistence failure: %s %q: %v", e.Step, e.Key, e.Err)
	}
	return fmt.Sprintf("persistence failure: %s: %v", e.Step, e.Err)
}

// Is reports ErrPersistence as a match.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error { return e.Err }
