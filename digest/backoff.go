package digest

import "time"

// BackoffPolicy computes the delay before a retry attempt: exponential
// growth from Base, capped at Max.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (1-based). The first
// retry waits Base, each further retry doubles, and the result never
// exceeds Max. Non-positive attempts wait nothing.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.Base <= 0 {
		return 0
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}
