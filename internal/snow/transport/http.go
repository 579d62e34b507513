package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snowbridge-io/snowbridge/internal/log"
	"github.com/snowbridge-io/snowbridge/internal/secrets"
)

// AuthKind selects the authentication scheme applied to each request.
type AuthKind string

const (
	// AuthKindBasic sends HTTP basic auth.
	AuthKindBasic AuthKind = "basic"
	// AuthKindBearer sends an Authorization: Bearer header.
	AuthKindBearer AuthKind = "bearer"
)

// AuthConfig configures request authentication. The credential is held in a
// secrets.Secret and only unwrapped at the moment the header is written.
type AuthConfig struct {
	Kind       AuthKind
	Username   string
	Credential secrets.Secret
}

// Config configures the HTTP transport.
type Config struct {
	// Timeout bounds each HTTP attempt (default: 30s)
	Timeout time.Duration

	// Auth configures authentication, required
	Auth AuthConfig

	// Retry configures retry behavior (nil uses defaults)
	Retry *RetryConfig

	// RateLimit bounds outgoing requests per second (0 disables)
	RateLimit float64

	// TLSInsecure disables certificate validation. Development only.
	TLSInsecure bool

	// Logger receives request/response logs. Bodies are never logged;
	// URLs are sanitized first.
	Logger *slog.Logger
}

// HTTPTransport executes requests against the instance with authentication,
// bounded retry, and rate limiting. One transport owns one connection pool;
// Close releases it.
type HTTPTransport struct {
	config  *Config
	client  *http.Client
	limiter RateLimiter
	logger  *slog.Logger
}

// New creates an HTTP transport.
func New(config *Config) (*HTTPTransport, error) {
	if config == nil {
		return nil, fmt.Errorf("transport config is required")
	}
	if config.Retry != nil {
		if err := config.Retry.Validate(); err != nil {
			return nil, fmt.Errorf("invalid retry configuration: %w", err)
		}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			// Connection pool settings
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,

			// Timeouts
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 1 * time.Second,

			TLSClientConfig: &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: config.TLSInsecure,
			},
		},
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter RateLimiter
	if tb := NewTokenBucketLimiter(config.RateLimit); tb != nil {
		limiter = tb
	}

	return &HTTPTransport{
		config:  config,
		client:  client,
		limiter: limiter,
		logger:  log.WithComponent(logger, "transport"),
	}, nil
}

// SetRateLimiter overrides the configured rate limiter. Used in tests.
func (t *HTTPTransport) SetRateLimiter(limiter RateLimiter) {
	t.limiter = limiter
}

// Close releases the transport's connection pool. Idempotent; safe on all
// exit paths.
func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

// Execute sends a request with retry and returns the response.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := t.validateRequest(req); err != nil {
		return nil, &Error{
			Type:      ErrorTypeInvalidReq,
			Message:   fmt.Sprintf("invalid request: %s", err.Error()),
			Retryable: false,
			Cause:     err,
		}
	}

	retryConfig := t.config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}

	return Execute(ctx, retryConfig, func(ctx context.Context) (*Response, error) {
		return t.executeOnce(ctx, req)
	})
}

// executeOnce executes a single HTTP attempt without retry logic.
func (t *HTTPTransport) executeOnce(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &Error{
				Type:      ErrorTypeCancelled,
				Message:   "rate limit wait cancelled",
				Retryable: false,
				Cause:     err,
			}
		}
	}

	requestID := uuid.NewString()

	httpReq, err := t.buildHTTPRequest(ctx, req, requestID)
	if err != nil {
		return nil, &Error{
			Type:      ErrorTypeInvalidReq,
			Message:   fmt.Sprintf("failed to build request: %s", err.Error()),
			Retryable: false,
			Cause:     err,
		}
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{
			Type:      ErrorTypeConnection,
			Message:   fmt.Sprintf("failed to read response body: %s", err.Error()),
			Retryable: true,
			Cause:     err,
		}
	}

	t.logger.DebugContext(ctx, "request completed",
		slog.String("method", req.Method),
		slog.String("url", sanitizeURL(httpReq.URL)),
		slog.Int("status", httpResp.StatusCode),
		slog.String(log.RequestIDKey, requestID),
		slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
	)

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Metadata: map[string]interface{}{
			MetadataRequestID: requestID,
		},
	}

	if httpResp.StatusCode >= 400 {
		if retryAfter := httpResp.Header.Get("Retry-After"); retryAfter != "" {
			resp.Metadata[MetadataRetryAfter] = retryAfter
		}
		return nil, classifyStatus(httpResp.StatusCode, body, resp.Metadata)
	}

	return resp, nil
}

// validateRequest checks the request before any network activity.
func (t *HTTPTransport) validateRequest(req *Request) error {
	switch req.Method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete:
	case "":
		return fmt.Errorf("method is required")
	default:
		return fmt.Errorf("unsupported HTTP method: %q", req.Method)
	}

	if req.URL == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}

	return nil
}

// buildHTTPRequest constructs an http.Request from a transport Request.
func (t *HTTPTransport) buildHTTPRequest(ctx context.Context, req *Request, requestID string) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for key, value := range req.Query {
			q.Set(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if err := t.applyAuth(httpReq); err != nil {
		return nil, err
	}

	return httpReq, nil
}

// applyAuth applies authentication to the HTTP request.
func (t *HTTPTransport) applyAuth(req *http.Request) error {
	auth := t.config.Auth

	switch auth.Kind {
	case AuthKindBasic:
		req.SetBasicAuth(auth.Username, auth.Credential.Reveal())

	case AuthKindBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Credential.Reveal())

	default:
		return fmt.Errorf("unsupported auth kind: %q", auth.Kind)
	}

	return nil
}

// classifyTransportError maps errors from http.Client.Do into *Error.
func (t *HTTPTransport) classifyTransportError(err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Type:      ErrorTypeCancelled,
			Message:   "request cancelled",
			Retryable: false,
			Cause:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Type:      ErrorTypeTimeout,
			Message:   "request timeout",
			Retryable: true,
			Cause:     err,
		}
	}

	if isConnectionError(err) {
		return &Error{
			Type:      ErrorTypeConnection,
			Message:   "connection error",
			Retryable: true,
			Cause:     err,
		}
	}

	return &Error{
		Type:      ErrorTypeConnection,
		Message:   "transport failure",
		Retryable: true,
		Cause:     err,
	}
}

// classifyStatus maps HTTP status codes to the error taxonomy.
func classifyStatus(statusCode int, body []byte, metadata map[string]interface{}) *Error {
	var errorType ErrorType
	var retryable bool

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		errorType = ErrorTypeAuth
		retryable = false
	case statusCode == http.StatusTooManyRequests:
		errorType = ErrorTypeRateLimit
		retryable = true
	case statusCode == http.StatusRequestTimeout:
		errorType = ErrorTypeTimeout
		retryable = true
	case statusCode >= 500:
		errorType = ErrorTypeServer
		retryable = true
	default:
		errorType = ErrorTypeClient
		retryable = false
	}

	// Auth failures never include the response body; it can echo
	// credential material back.
	message := fmt.Sprintf("HTTP %d", statusCode)
	if errorType != ErrorTypeAuth && len(body) > 0 && len(body) < 500 {
		message = fmt.Sprintf("HTTP %d: %s", statusCode, strings.TrimSpace(string(body)))
	}

	return &Error{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
		Metadata:   metadata,
	}
}

// isConnectionError checks if an error is a connection-level failure.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"eof",
	} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
