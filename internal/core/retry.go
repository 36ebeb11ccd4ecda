package core

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"researchdash/pkg/domain"
)

// RetryPolicy bounds how a Retrier reacts to rate limiting.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first call included.
	MaxAttempts int
	// BaseDelay is the sleep before the first retry; each further retry
	// doubles it (0.5s, 1s, 2s, 4s with the defaults).
	BaseDelay time.Duration
}

// DefaultReadRetry matches the remote client quota window: up to five tries
// with exponential backoff.
func DefaultReadRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond}
}

// DefaultWriteRetry performs a single attempt. A whole-table overwrite is
// not idempotent: if the first attempt succeeded server-side before the
// response was lost, a retry would apply it twice. Callers who accept that
// risk can configure a wider policy.
func DefaultWriteRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Retrier runs operations against the remote store, retrying on the
// transient rate-limit signal with exponential delay.
type Retrier struct {
	policy  RetryPolicy
	clock   clockwork.Clock
	onRetry func()
}

// NewRetrier constructs a retrier. A nil clock falls back to the real clock.
func NewRetrier(policy RetryPolicy, clock clockwork.Clock) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Retrier{policy: policy, clock: clock}
}

// OnRetry registers a hook invoked before each backoff sleep. Used for
// metrics.
func (r *Retrier) OnRetry(fn func()) {
	r.onRetry = fn
}

// Do executes op, sleeping base<<attempt between rate-limited tries. Any
// failure other than a 429 propagates immediately; exhausting the attempt
// budget propagates the last failure.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if r.onRetry != nil {
				r.onRetry()
			}
			delay := r.policy.BaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !domain.RateLimited(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
