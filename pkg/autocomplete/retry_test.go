package autocomplete

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/backoff"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

func TestRetryPolicyRetriesConflicts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5}

	calls := 0
	var seen []int
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return kv.ErrTxConflict
		}
		return nil
	}, func(attempt int) {
		seen = append(seen, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetryPolicyGivesUp(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return kv.ErrTxConflict
	}, nil)

	assert.ErrorIs(t, err, ErrTooManyConflicts)
	assert.ErrorIs(t, err, kv.ErrTxConflict)
	assert.Equal(t, 4, calls)
}

func TestRetryPolicyPassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return boom
	}, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyUnboundedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Backoff: backoff.Config{BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		if calls == 10 {
			cancel()
		}
		return kv.ErrTxConflict
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, calls)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{Backoff: backoff.Config{
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		MaxDelay:   10 * time.Millisecond,
	}}

	assert.Equal(t, time.Millisecond, policy.delay(0))
	assert.Equal(t, 4*time.Millisecond, policy.delay(2))
	assert.Equal(t, 10*time.Millisecond, policy.delay(20))

	policy.Backoff.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := policy.delay(0)
		assert.GreaterOrEqual(t, d, 500*time.Microsecond)
		assert.LessOrEqual(t, d, 1500*time.Microsecond)
	}

	assert.Zero(t, RetryPolicy{}.delay(3))
}
