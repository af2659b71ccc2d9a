package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoubles(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Minute}

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestBackoffCapped(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(10))
	// Large attempt numbers must not overflow past the cap
	assert.Equal(t, 5*time.Second, p.Delay(200))
}

func TestBackoffMonotone(t *testing.T) {
	p := BackoffPolicy{Base: 500 * time.Millisecond, Max: 8 * time.Second}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, p.Max)
		prev = d
	}
}

func TestBackoffEdgeCases(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Minute}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Duration(0), p.Delay(-3))

	// Zero base means no waiting at all
	zero := BackoffPolicy{Base: 0, Max: time.Minute}
	assert.Equal(t, time.Duration(0), zero.Delay(5))
}
