package retry

import (
	"fmt"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// Multiplier scales the backoff between attempts.
	Multiplier float64
	// Jitter is the fraction of random variation applied to each wait.
	Jitter float64
	// RetryableFunc decides whether an error is worth retrying. Nil means
	// every error is retried.
	RetryableFunc func(error) bool
}

// DefaultPolicy is a sane bounded policy for external calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Validate checks the policy for nonsense values.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %s", p.InitialBackoff)
	}
	if p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max backoff %s below initial backoff %s", p.MaxBackoff, p.InitialBackoff)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %f", p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be in [0,1], got %f", p.Jitter)
	}
	return nil
}
