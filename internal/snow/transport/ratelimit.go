package transport

import (
	"context"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter adapts golang.org/x/time/rate to the RateLimiter
// interface. It smooths outgoing request bursts against the instance so one
// chatty agent session cannot trip server-side throttling.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a limiter allowing requestsPerSecond
// sustained throughput with a burst of up to twice that (minimum 1).
// Returns nil when requestsPerSecond is zero or negative, which disables
// limiting entirely.
func NewTokenBucketLimiter(requestsPerSecond float64) *TokenBucketLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is cancelled.
func (t *TokenBucketLimiter) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
