package crawler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewFixedRetryPolicy(3, 250*time.Millisecond)
	boom := errors.New("boom")

	require.Equal(t, 3, p.MaxAttempts())
	require.Equal(t, 250*time.Millisecond, p.Delay(1))
	require.Equal(t, 250*time.Millisecond, p.Delay(2), "delay must not grow between attempts")
	require.True(t, p.ShouldRetry(boom, 1))
	require.True(t, p.ShouldRetry(boom, 2))
	require.False(t, p.ShouldRetry(boom, 3))
	require.False(t, p.ShouldRetry(nil, 1))
}

func TestFixedRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewFixedRetryPolicy(0, -1)
	require.Equal(t, defaultRetryAttempts, p.MaxAttempts())
	require.Equal(t, defaultRetryDelay, p.Delay(1))

	zero := NewFixedRetryPolicy(1, 0)
	require.Zero(t, zero.Delay(1))
	require.False(t, zero.ShouldRetry(errors.New("boom"), 1))
}
