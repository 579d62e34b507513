package transport

import (
	"fmt"
)

// ErrorType classifies transport errors for routing and retry decisions.
type ErrorType string

const (
	// ErrorTypeConnection indicates network or DNS errors
	ErrorTypeConnection ErrorType = "connection_error"

	// ErrorTypeTimeout indicates request timeout or deadline exceeded (408 included)
	ErrorTypeTimeout ErrorType = "timeout_error"

	// ErrorTypeAuth indicates authentication failure (401, 403)
	ErrorTypeAuth ErrorType = "authentication_error"

	// ErrorTypeRateLimit indicates rate limiting (429 Too Many Requests)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"

	// ErrorTypeServer indicates server errors (5xx)
	ErrorTypeServer ErrorType = "server_error"

	// ErrorTypeClient indicates other client errors (4xx, non-retryable)
	ErrorTypeClient ErrorType = "client_error"

	// ErrorTypeInvalidReq indicates request validation failed before execution
	ErrorTypeInvalidReq ErrorType = "validation_error"

	// ErrorTypeCancelled indicates the calling context was cancelled
	ErrorTypeCancelled ErrorType = "cancelled"
)

// Error is a structured transport failure. Every failure path in this
// package returns *Error so callers can route on Type and Retryable
// instead of matching message strings.
type Error struct {
	// Type classifies the error for routing and retry decisions
	Type ErrorType

	// StatusCode is the HTTP status code if applicable.
	// Zero for non-HTTP errors (connection, timeout, cancellation).
	StatusCode int

	// Message is safe to log and display; credentials are never included.
	Message string

	// Retryable indicates whether the error is eligible for retry
	Retryable bool

	// Cause is the underlying error. May contain sensitive transport
	// detail; use Message for user-facing output.
	Cause error

	// Metadata carries service detail for structured logging (retry_after, request id)
	Metadata map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType returns true if the error is of the given type.
func (e *Error) IsType(t ErrorType) bool {
	return e.Type == t
}
