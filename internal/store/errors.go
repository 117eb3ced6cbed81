// ABOUTME: Error taxonomy for the persistence layer
// ABOUTME: Sentinel errors plus the LockTimeoutError returned after retry exhaustion

package store

import (
	"errors"
	"fmt"
)

// ErrConnectionUnavailable is returned when no usable connection to the store
// is bound to the operation.
var ErrConnectionUnavailable = errors.New("store connection unavailable")

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrSchemaMissing is returned when a required table is absent. It signals a
// setup bug: InitSchema was never called against this database.
var ErrSchemaMissing = errors.New("required table missing")

// ErrIntegrity is returned for uniqueness, foreign-key, and other constraint
// violations. These are never retried; the outcome would not change.
var ErrIntegrity = errors.New("integrity constraint violated")

// LockTimeoutError is returned when a write kept hitting transient lock
// contention until the retry budget ran out. Attempts records how many times
// the statement was tried.
type LockTimeoutError struct {
	Attempts int
	Err      error
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("write still locked after %d attempts: %v", e.Attempts, e.Err)
}

func (e *LockTimeoutError) Unwrap() error {
	return e.Err
}
