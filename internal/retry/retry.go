// Package retry holds the single retry policy applied to gateway and store
// calls, replacing the per-call-site backoff loops scattered through the
// original services.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/pandutama/tripbooking/internal/domain"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultPolicy matches the old producer retry: 3 attempts, half-second base.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Jitter: true}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(p.delay(i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// transient reports whether another attempt could change the outcome.
// Definitive answers only burn the budget.
func transient(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrValidation) &&
		!errors.Is(err, domain.ErrPreconditionFailed)
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}
