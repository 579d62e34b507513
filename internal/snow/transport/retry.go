package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig configures retry behavior for transport operations.
//
// MaxRetries counts additional attempts after the first, so a request is
// issued at most MaxRetries+1 times.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts on transient failure (default: 3)
	MaxRetries int

	// InitialBackoff is the first retry delay; it doubles per attempt (default: 1s)
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff delay (default: 30s)
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Validate checks if the retry configuration is valid.
func (c *RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must be non-negative, got %v", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", c.MaxBackoff, c.InitialBackoff)
	}
	return nil
}

// ExecuteFunc executes a single request attempt.
type ExecuteFunc func(ctx context.Context) (*Response, error)

// Execute runs the given function with bounded retry.
//
// Retry behavior:
//   - Retries only errors marked Retryable (rate limit, timeout, connection, 5xx)
//   - Auth and other client errors propagate immediately
//   - Delay doubles from InitialBackoff, capped at MaxBackoff; a small random
//     jitter (0-100ms) is added on top of the pure exponential schedule
//   - A Retry-After header on 429/503 responses is honored when it exceeds
//     the calculated delay
//   - Stops on context cancellation between attempts; cancellation is never
//     outlived by the retry loop
//
// The per-attempt timeout is not aggregated: a fully retried call can take
// up to timeout*(MaxRetries+1) wall-clock time. Callers needing a hard bound
// should set a context deadline, which this loop observes.
//
// After exhausting retries the last transient error is returned unchanged.
func Execute(ctx context.Context, config *RetryConfig, fn ExecuteFunc) (*Response, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	var resp *Response

	attempts := config.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, lastErr = fn(ctx)

		if lastErr == nil {
			if resp.Metadata == nil {
				resp.Metadata = make(map[string]interface{})
			}
			resp.Metadata[MetadataRetryCount] = attempt - 1
			return resp, nil
		}

		shouldRetry, retryAfter := classifyForRetry(lastErr)
		if attempt >= attempts || !shouldRetry {
			return nil, lastErr
		}

		if ctx.Err() != nil {
			return nil, &Error{
				Type:      ErrorTypeCancelled,
				Message:   "request cancelled before retry",
				Retryable: false,
				Cause:     ctx.Err(),
			}
		}

		delay := backoffDelay(config, attempt, retryAfter)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &Error{
				Type:      ErrorTypeCancelled,
				Message:   "request cancelled during retry backoff",
				Retryable: false,
				Cause:     ctx.Err(),
			}
		}
	}

	return nil, lastErr
}

// classifyForRetry determines if an error is transient and extracts the
// Retry-After hint if present.
func classifyForRetry(err error) (shouldRetry bool, retryAfter time.Duration) {
	terr, ok := err.(*Error)
	if !ok {
		// Unknown error kind: propagate immediately, never retry.
		return false, 0
	}

	if !terr.Retryable {
		return false, 0
	}

	if terr.StatusCode == http.StatusTooManyRequests || terr.StatusCode == http.StatusServiceUnavailable {
		retryAfter = extractRetryAfter(terr)
	}

	return true, retryAfter
}

// backoffDelay calculates the delay before retry attempt+1.
//
// Formula: delay = min(InitialBackoff * 2^(attempt-1), MaxBackoff) + jitter
// Jitter: random [0ms, 100ms]
func backoffDelay(config *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	base := float64(config.InitialBackoff) * pow(2.0, attempt-1)
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	delay := time.Duration(base)

	if retryAfter > 0 {
		if retryAfter > delay {
			delay = retryAfter
		}
		if delay > config.MaxBackoff {
			delay = config.MaxBackoff
		}
	}

	jitter := time.Duration(rand.Int63n(101)) * time.Millisecond

	return delay + jitter
}

// extractRetryAfter reads the Retry-After hint from error metadata.
// Returns 0 if not present or malformed.
//
// Supports both formats:
//   - Numeric: seconds to wait (e.g., "120")
//   - HTTP-date: absolute time (e.g., "Wed, 21 Oct 2015 07:28:00 GMT")
func extractRetryAfter(err *Error) time.Duration {
	if err.Metadata == nil {
		return 0
	}

	raw, ok := err.Metadata[MetadataRetryAfter]
	if !ok {
		return 0
	}

	s, ok := raw.(string)
	if !ok {
		return 0
	}

	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	retryTime, parseErr := http.ParseTime(s)
	if parseErr != nil {
		return 0
	}

	delay := time.Until(retryTime)
	if delay < 0 {
		return 0
	}
	return delay
}

// pow calculates base^exp for integer exponents.
func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
