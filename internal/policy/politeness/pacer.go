// Package politeness paces upstream requests with a token bucket so consecutive calls
// are spaced by at least the configured delay.
package politeness

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/wikicrawler/internal/metrics"
)

// Pacer implements crawler.Pacer on top of rate.Limiter.
type Pacer struct {
	limiter *rate.Limiter
}

// New creates a Pacer allowing one request per delay. A non-positive delay disables pacing.
func New(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may be sent, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessDelay(waited)
	}
	return nil
}

// Delay reports the configured spacing, zero when pacing is disabled.
func (p *Pacer) Delay() time.Duration {
	limit := p.limiter.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
