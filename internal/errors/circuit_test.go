package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := NewBreaker("embed", 3, time.Minute)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Do(func() error { return nil }))
	}
	assert.False(t, b.Open())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("embed", 3, time.Minute)
	boom := fmt.Errorf("connection refused")

	for i := 0; i < 3; i++ {
		assert.Equal(t, boom, b.Do(func() error { return boom }))
	}
	assert.True(t, b.Open())

	// Open breaker fails fast without invoking the op.
	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("embed", 3, time.Minute)
	boom := fmt.Errorf("timeout")

	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return boom })
	require.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return boom })
	_ = b.Do(func() error { return boom })

	assert.False(t, b.Open())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := NewBreaker("embed", 1, 20*time.Millisecond)
	boom := fmt.Errorf("down")

	_ = b.Do(func() error { return boom })
	require.True(t, b.Open())

	time.Sleep(30 * time.Millisecond)

	// The probe runs and, on success, closes the breaker.
	called := false
	require.NoError(t, b.Do(func() error { called = true; return nil }))
	assert.True(t, called)
	assert.False(t, b.Open())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker("embed", 1, 20*time.Millisecond)
	boom := fmt.Errorf("down")

	_ = b.Do(func() error { return boom })
	time.Sleep(30 * time.Millisecond)
	_ = b.Do(func() error { return boom })

	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrBreakerOpen)
}
