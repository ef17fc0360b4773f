package retry

import (
	"context"
	"errors"
	"time"

	"storefront-api/internal/domain"
)

const (
	// DefaultMaxAttempts bounds how many times a call runs in total.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is multiplied by the attempt number between tries.
	DefaultBaseDelay = time.Second
)

// Do invokes fn up to maxAttempts times. Client errors (a normalized error
// with a known status below 500, auth rejections, validation failures) are
// returned immediately: they are not transient and retrying cannot help.
// Between attempts it sleeps baseDelay*attempt, honoring ctx cancellation.
// The final error is returned as-is, never swallowed.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), maxAttempts int, baseDelay time.Duration) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(baseDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

func shouldRetry(err error) bool {
	var re *domain.RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		return false
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Unknown failures (including NetworkError) are treated as transient.
	return true
}

// Normalize maps a provider error payload into the uniform retryable shape.
// It understands both the provider's {code, message, details} envelope and
// Postgres-style {code, details} objects.
func Normalize(statusCode int, body interface{}) *domain.RetryableError {
	out := &domain.RetryableError{StatusCode: statusCode}
	if m, ok := body.(map[string]interface{}); ok {
		out.Message = firstString(m, "message", "error", "error_description", "msg")
		out.Code = firstString(m, "code", "error_code")
		out.Details = firstString(m, "details", "hint")
	}
	if out.Message == "" {
		out.Message = "An unexpected error occurred"
	}
	return out
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
