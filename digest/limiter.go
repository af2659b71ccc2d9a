package digest

import (
	"context"
	"sync"
	"time"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// RateLimiter enforces max fetch calls per minute with a sliding window.
// Keeps the engine from hammering the provider when many batches run at
// once.
type RateLimiter struct {
	maxCallsPerMinute int
	window            time.Duration
	mu                sync.Mutex
	callTimes         []time.Time
	timeNow           func() time.Time // Injectable for testing
}

// NewRateLimiter creates a rate limiter with real time. A non-positive
// limit disables limiting.
func NewRateLimiter(maxCallsPerMinute int) *RateLimiter {
	return NewRateLimiterWithClock(maxCallsPerMinute, time.Now)
}

// NewRateLimiterWithClock creates a rate limiter with injectable clock
// (for testing)
func NewRateLimiterWithClock(maxCallsPerMinute int, timeNow func() time.Time) *RateLimiter {
	return &RateLimiter{
		maxCallsPerMinute: maxCallsPerMinute,
		window:            60 * time.Second,
		timeNow:           timeNow,
	}
}

// Allow checks if a call is allowed right now. Returns an error when the
// window is full.
func (r *RateLimiter) Allow() error {
	if r == nil || r.maxCallsPerMinute <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeNow()
	r.removeExpiredCalls(now)

	if len(r.callTimes) >= r.maxCallsPerMinute {
		return errors.Newf("rate limit exceeded: %d calls in the last minute (limit: %d)",
			len(r.callTimes), r.maxCallsPerMinute)
	}

	r.callTimes = append(r.callTimes, now)
	return nil
}

// Wait blocks until a call is allowed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := r.Allow(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// removeExpiredCalls drops call timestamps outside the sliding window.
// Must be called with lock held; timestamps are ordered.
func (r *RateLimiter) removeExpiredCalls(now time.Time) {
	cutoff := now.Add(-r.window)
	expired := 0
	for _, callTime := range r.callTimes {
		if !callTime.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	r.callTimes = r.callTimes[expired:]
}

// Stats returns current window usage.
func (r *RateLimiter) Stats() (callsInWindow int, remaining int) {
	if r == nil || r.maxCallsPerMinute <= 0 {
		return 0, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeExpiredCalls(r.timeNow())
	callsInWindow = len(r.callTimes)
	remaining = r.maxCallsPerMinute - callsInWindow
	if remaining < 0 {
		remaining = 0
	}
	return callsInWindow, remaining
}
