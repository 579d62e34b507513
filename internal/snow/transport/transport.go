// Package transport provides the HTTP execution layer for the CRUD client.
//
// It separates protocol concerns (authentication, retries, rate limiting,
// error classification) from client-level concerns (operation semantics,
// query building, response envelopes). All failures surface as *Error so
// the retry engine and the client can route on error kind.
package transport

import (
	"context"
)

// Request represents a single HTTP request to the instance API.
type Request struct {
	// Method is the HTTP method (GET, POST, PATCH, DELETE)
	Method string

	// URL is the full request URL
	URL string

	// Query holds URL query parameters, added to the URL at execution time.
	Query map[string]string

	// Body is the JSON request body, nil for GET/DELETE
	Body []byte
}

// Response represents the instance's reply.
type Response struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Headers contains response headers
	Headers map[string][]string

	// Body is the response body
	Body []byte

	// Metadata carries execution details (request id, retry count)
	Metadata map[string]interface{}
}

// Standard metadata keys.
const (
	// MetadataRequestID is the per-call correlation identifier
	MetadataRequestID = "request_id"

	// MetadataRetryCount is the number of retries performed for this request
	MetadataRetryCount = "retry_count"

	// MetadataRetryAfter is the raw Retry-After header from a throttled response
	MetadataRetryAfter = "retry_after"
)

// RateLimiter bounds the rate of outgoing requests.
// Implementations block until a request is allowed.
type RateLimiter interface {
	// Wait blocks until a request is allowed under the rate limit.
	// Returns an error if the context is cancelled before the request can proceed.
	Wait(ctx context.Context) error
}
