package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func transientError(errType ErrorType, status int) *Error {
	return &Error{
		Type:       errType,
		StatusCode: status,
		Message:    "transient",
		Retryable:  true,
	}
}

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *RetryConfig
		wantErr bool
	}{
		{
			name:    "defaults",
			config:  DefaultRetryConfig(),
			wantErr: false,
		},
		{
			name:    "zero retries is valid",
			config:  &RetryConfig{MaxRetries: 0, InitialBackoff: time.Second, MaxBackoff: time.Second},
			wantErr: false,
		},
		{
			name:    "negative retries",
			config:  &RetryConfig{MaxRetries: -1, InitialBackoff: time.Second, MaxBackoff: time.Second},
			wantErr: true,
		},
		{
			name:    "negative backoff",
			config:  &RetryConfig{MaxRetries: 1, InitialBackoff: -time.Second, MaxBackoff: time.Second},
			wantErr: true,
		},
		{
			name:    "max below initial",
			config:  &RetryConfig{MaxRetries: 1, InitialBackoff: 10 * time.Second, MaxBackoff: time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	resp, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if got := resp.Metadata[MetadataRetryCount]; got != 0 {
		t.Errorf("retry count = %v, want 0", got)
	}
}

func TestExecute_TransientErrorRetriedExactlyMaxRetriesPlusOne(t *testing.T) {
	for _, errType := range []ErrorType{ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeServer} {
		t.Run(string(errType), func(t *testing.T) {
			calls := 0
			_, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
				calls++
				return nil, transientError(errType, 0)
			})
			if err == nil {
				t.Fatal("Execute() error = nil, want transient error")
			}
			if calls != 4 {
				t.Errorf("calls = %d, want 4 (1 initial + 3 retries)", calls)
			}
		})
	}
}

func TestExecute_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), fastRetryConfig(0), func(ctx context.Context) (*Response, error) {
		calls++
		return nil, transientError(ErrorTypeServer, 500)
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecute_AuthErrorNeverRetried(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
		calls++
		return nil, &Error{Type: ErrorTypeAuth, StatusCode: 401, Message: "authentication failed"}
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want auth error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (auth must not be retried)", calls)
	}

	var terr *Error
	if !errors.As(err, &terr) || terr.Type != ErrorTypeAuth {
		t.Errorf("error = %v, want authentication error", err)
	}
}

func TestExecute_ClientErrorNeverRetried(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
		calls++
		return nil, &Error{Type: ErrorTypeClient, StatusCode: 400, Message: "bad request"}
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want client error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecute_UnknownErrorNeverRetried(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
		calls++
		return nil, errors.New("plain error")
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecute_SuccessAfterRetriesReportsRetryCount(t *testing.T) {
	calls := 0
	resp, err := Execute(context.Background(), fastRetryConfig(3), func(ctx context.Context) (*Response, error) {
		calls++
		if calls < 3 {
			return nil, transientError(ErrorTypeServer, 503)
		}
		return &Response{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := resp.Metadata[MetadataRetryCount]; got != 2 {
		t.Errorf("retry count = %v, want 2", got)
	}
}

func TestExecute_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Execute(ctx, &RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour},
		func(ctx context.Context) (*Response, error) {
			calls++
			cancel()
			return nil, transientError(ErrorTypeServer, 500)
		})
	if err == nil {
		t.Fatal("Execute() error = nil, want cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	var terr *Error
	if !errors.As(err, &terr) || terr.Type != ErrorTypeCancelled {
		t.Errorf("error = %v, want cancelled", err)
	}
}

func TestBackoffDelay_ExponentialWithCap(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     4 * time.Second,
	}

	tests := []struct {
		attempt int
		minimum time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second}, // capped
	}

	for _, tt := range tests {
		delay := backoffDelay(config, tt.attempt, 0)
		if delay < tt.minimum {
			t.Errorf("attempt %d: delay = %v, want >= %v", tt.attempt, delay, tt.minimum)
		}
		// Jitter adds at most 100ms on top of the schedule.
		if delay > tt.minimum+100*time.Millisecond {
			t.Errorf("attempt %d: delay = %v, want <= %v", tt.attempt, delay, tt.minimum+100*time.Millisecond)
		}
	}
}

func TestBackoffDelay_RetryAfterWinsWhenLarger(t *testing.T) {
	config := &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}

	delay := backoffDelay(config, 1, 10*time.Second)
	if delay < 10*time.Second {
		t.Errorf("delay = %v, want >= 10s (Retry-After)", delay)
	}

	// Retry-After is still capped by MaxBackoff.
	delay = backoffDelay(config, 1, 2*time.Minute)
	if delay > 30*time.Second+100*time.Millisecond {
		t.Errorf("delay = %v, want capped at MaxBackoff", delay)
	}
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want time.Duration
	}{
		{
			name: "numeric seconds",
			err:  &Error{Metadata: map[string]interface{}{MetadataRetryAfter: "120"}},
			want: 120 * time.Second,
		},
		{
			name: "no metadata",
			err:  &Error{},
			want: 0,
		},
		{
			name: "malformed",
			err:  &Error{Metadata: map[string]interface{}{MetadataRetryAfter: "soon"}},
			want: 0,
		},
		{
			name: "negative",
			err:  &Error{Metadata: map[string]interface{}{MetadataRetryAfter: "-5"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractRetryAfter(tt.err); got != tt.want {
				t.Errorf("extractRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
