package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2.0}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(4), func(context.Context) error {
		calls++
		if calls < 3 {
			return New(ErrCodeNetworkTimeout, "embedder slow", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	last := New(ErrCodeNetworkTimeout, "still down", nil)
	err := Retry(context.Background(), fastBackoff(3), func(context.Context) error {
		calls++
		return last
	})
	assert.Equal(t, 3, calls)
	assert.Same(t, last, err.(*SearchError))
}

func TestRetryStopsOnNonRetryableSearchError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(5), func(context.Context) error {
		calls++
		return New(ErrCodeDimensionMismatch, "768 != 256", nil)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrCodeDimensionMismatch, GetCode(err))
}

func TestRetryKeepsTryingOnPlainErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastBackoff(3), func(context.Context) error {
		calls++
		return fmt.Errorf("untagged failure")
	})
	assert.Equal(t, 3, calls)
	assert.Error(t, err)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Backoff{Attempts: 10, Initial: 50 * time.Millisecond, Factor: 2.0}, func(context.Context) error {
		calls++
		cancel()
		return New(ErrCodeNetworkTimeout, "down", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), Backoff{}, func(context.Context) error {
		calls++
		return fmt.Errorf("x")
	})
	assert.Equal(t, 1, calls)
}
