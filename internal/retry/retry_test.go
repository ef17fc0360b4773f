package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-api/internal/domain"
)

func TestDoClientErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, &domain.RetryableError{Message: "bad request", StatusCode: 400}
	}, 3, time.Millisecond)

	if calls != 1 {
		t.Fatalf("expected exactly one call for a 400, got %d", calls)
	}
	var re *domain.RetryableError
	if !errors.As(err, &re) || re.StatusCode != 400 {
		t.Fatalf("expected the original error back, got %v", err)
	}
}

func TestDoServerErrorRetriedUpToMax(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, &domain.RetryableError{Message: "boom", StatusCode: 500}
	}, 3, time.Millisecond)

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	var re *domain.RetryableError
	if !errors.As(err, &re) || re.StatusCode != 500 {
		t.Fatalf("final error must surface, got %v", err)
	}
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &domain.RetryableError{Message: "flaky", StatusCode: 503}
		}
		return "ok", nil
	}, 3, time.Millisecond)

	if err != nil || got != "ok" {
		t.Fatalf("expected success on third attempt, got %q err=%v", got, err)
	}
}

func TestDoAuthErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, &domain.AuthError{Message: "nope", StatusCode: 401}
	}, 3, time.Millisecond)

	if calls != 1 {
		t.Fatalf("auth rejections must not be retried, got %d calls", calls)
	}
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestDoNetworkErrorRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, &domain.NetworkError{Endpoint: "/x", Err: errors.New("connection refused")}
	}, 2, time.Millisecond)

	if calls != 2 {
		t.Fatalf("network errors are transient, expected 2 attempts, got %d", calls)
	}
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, func(context.Context) (int, error) {
		calls++
		return 0, &domain.RetryableError{Message: "boom", StatusCode: 500}
	}, 5, time.Second)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
}

func TestNormalizeProviderEnvelope(t *testing.T) {
	body := map[string]interface{}{
		"message": "row not found",
		"code":    "PGRST116",
		"details": "zero rows",
	}
	got := Normalize(404, body)
	if got.Message != "row not found" || got.Code != "PGRST116" || got.Details != "zero rows" || got.StatusCode != 404 {
		t.Fatalf("unexpected normalization: %+v", got)
	}
	if got.Retryable() {
		t.Fatalf("404 must not be retryable")
	}
}

func TestNormalizeFallbackMessage(t *testing.T) {
	got := Normalize(500, map[string]interface{}{"code": "XX000"})
	if got.Message != "An unexpected error occurred" {
		t.Fatalf("expected fallback message, got %q", got.Message)
	}
	if !got.Retryable() {
		t.Fatalf("500 must be retryable")
	}
}

func TestNormalizeNonObjectBody(t *testing.T) {
	got := Normalize(0, "plain text")
	if got.Message != "An unexpected error occurred" || got.StatusCode != 0 {
		t.Fatalf("unexpected normalization: %+v", got)
	}
	if !got.Retryable() {
		t.Fatalf("unknown status must be retryable")
	}
}
