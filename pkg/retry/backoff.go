package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential waits with jitter for a Policy.
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator.
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the wait before the given attempt (1-based).
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(b.policy.InitialBackoff) * math.Pow(b.policy.Multiplier, float64(attempt-1))
	if backoff > float64(b.policy.MaxBackoff) {
		backoff = float64(b.policy.MaxBackoff)
	}

	if b.policy.Jitter > 0 {
		delta := backoff * b.policy.Jitter
		backoff = backoff - delta + rand.Float64()*2*delta
	}

	return time.Duration(backoff)
}
