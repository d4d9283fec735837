package crawler

import "time"

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// FixedRetryPolicy retries any failure up to a fixed number of attempts with a
// constant pause in between. Per-request timeouts count as ordinary failures;
// cancellation of the caller's context is checked by the Fetcher itself.
type FixedRetryPolicy struct {
	attempts int
	wait     time.Duration
}

// NewFixedRetryPolicy builds a policy; non-positive values fall back to 3 attempts and 1s.
func NewFixedRetryPolicy(attempts int, wait time.Duration) *FixedRetryPolicy {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if wait < 0 {
		wait = defaultRetryDelay
	}
	return &FixedRetryPolicy{attempts: attempts, wait: wait}
}

// MaxAttempts returns the total number of attempts, including the first one.
func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.attempts
}

// Delay returns the pause before the given (1-based) retry attempt.
func (p *FixedRetryPolicy) Delay(_ int) time.Duration {
	return p.wait
}

// ShouldRetry reports whether another attempt should follow the given failed attempt.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return attempt < p.attempts
}
