package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the tracker pipeline. Callers branch on
// these with errors.Is rather than matching driver-specific errors.
var (
	// ErrNoPrintSection means the payload was well-formed JSON but carried
	// no nested print section. Not a failure: the message simply holds
	// nothing actionable for the tracker.
	ErrNoPrintSection = errors.New("report has no print section")

	// ErrNotFound means the job record does not exist in the store.
	ErrNotFound = errors.New("job not found")
)

// DecodeError wraps a failure to parse raw message bytes into a report.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode report: %v", e.Err)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a datastore failure (unreachable, timed out, or a
// constraint the caller did not anticipate). The message loop treats it as
// non-fatal: the message is dropped and the next one gets a fresh attempt.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying datastore error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
