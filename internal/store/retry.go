// ABOUTME: Retry policy and backoff loop for writes against a single-writer store
// ABOUTME: Converts engine-level busy rejections into a bounded, transparent wait

package store

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy controls how writes are retried when the store reports
// transient lock contention. Attempts are counted starting at 1, so
// MaxAttempts = 1 means a single try with no retry.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          2 * time.Second,
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry policy: base delay must not be negative, got %v", p.BaseDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("retry policy: backoff multiplier must be >= 1, got %v", p.BackoffMultiplier)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("retry policy: max delay %v is below base delay %v", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Delay returns the sleep before the retry following the given attempt:
// min(MaxDelay, BaseDelay * BackoffMultiplier^(attempt-1)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// retry runs fn up to policy.MaxAttempts times, sleeping per the policy
// between attempts that failed with transient lock contention. fn must leave
// no transaction open when it returns an error, so nothing holds the store's
// write lock during the sleep.
//
// Non-transient failures are classified once and returned immediately:
// constraint violations map to ErrIntegrity, a missing table maps to
// ErrSchemaMissing, anything else propagates unchanged.
func retry(policy RetryPolicy, d dialect, sleep func(time.Duration), fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		switch {
		case d.IsConstraint(err):
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		case d.IsMissingTable(err):
			return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
		case !d.IsTransient(err):
			return err
		}
		if attempt >= policy.MaxAttempts {
			return &LockTimeoutError{Attempts: attempt, Err: err}
		}
		sleep(policy.Delay(attempt))
	}
}
