package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiterWithClock(3, func() time.Time { return now })

	require.NoError(t, limiter.Allow())
	require.NoError(t, limiter.Allow())
	require.NoError(t, limiter.Allow())
	assert.Error(t, limiter.Allow())

	calls, remaining := limiter.Stats()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, remaining)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiterWithClock(2, func() time.Time { return now })

	require.NoError(t, limiter.Allow())
	require.NoError(t, limiter.Allow())
	assert.Error(t, limiter.Allow())

	// Advance past the window; earlier calls expire
	now = now.Add(61 * time.Second)
	require.NoError(t, limiter.Allow())

	calls, remaining := limiter.Stats()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, remaining)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Allow())
	}
}
