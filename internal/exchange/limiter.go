package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps x/time/rate as a token bucket sized for one
// venue's published request budget.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows ratePerSec sustained requests with a burst of
// the same size, matching the conservative single-venue budgets the
// exchange APIs publish.
func NewRateLimiter(ratePerSec float64) *RateLimiter {
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
