package autocomplete

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"google.golang.org/grpc/backoff"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

// ErrTooManyConflicts is returned when a watched transaction kept conflicting
// for every allowed attempt. It wraps kv.ErrTxConflict.
var ErrTooManyConflicts = fmt.Errorf("too many transaction conflicts: %w", kv.ErrTxConflict)

// RetryPolicy bounds the optimistic transaction loop.
// MaxAttempts == 0 retries until success or context cancellation.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     backoff.Config
}

// DefaultRetryPolicy allows 64 attempts with 1ms to 50ms jittered backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 64,
		Backoff: backoff.Config{
			BaseDelay:  time.Millisecond,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   50 * time.Millisecond,
		},
	}
}

// delay is the wait before attempt n+1 (n starts at 0).
func (p RetryPolicy) delay(n int) time.Duration {
	if p.Backoff.BaseDelay <= 0 {
		return 0
	}
	d := float64(p.Backoff.BaseDelay) * math.Pow(math.Max(p.Backoff.Multiplier, 1), float64(n))
	if limit := float64(p.Backoff.MaxDelay); limit > 0 && d > limit {
		d = limit
	}
	d *= 1 + p.Backoff.Jitter*(rand.Float64()*2-1)
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Do runs fn until it returns something other than kv.ErrTxConflict.
// onConflict, if set, is called with the attempt number after every conflict.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, onConflict func(attempt int)) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if !errors.Is(err, kv.ErrTxConflict) {
			return err
		}
		if onConflict != nil {
			onConflict(attempt + 1)
		}
		if p.MaxAttempts > 0 && attempt+1 >= p.MaxAttempts {
			return ErrTooManyConflicts
		}

		if d := p.delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}
