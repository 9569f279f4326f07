package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), nil, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &TransientError{Err: stderrors.New("flaky")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := &ValidationError{Tool: "echo"}
	err := Retry(context.Background(), fastRetryConfig(), nil, func(context.Context) error {
		attempts++
		return permanent
	})
	if !stderrors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("permanent error retried %d times", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), nil, func(context.Context) error {
		attempts++
		return &TransientError{Err: stderrors.New("always")}
	})
	if err == nil {
		t.Fatal("expected the last error after exhaustion")
	}
	if attempts != 4 {
		t.Fatalf("expected MaxAttempts+1 = 4 attempts, got %d", attempts)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastRetryConfig(), nil, func(context.Context) error {
		return &TransientError{Err: stderrors.New("never reached twice")}
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	config := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	if d := calculateBackoff(0, config); d != 10*time.Millisecond {
		t.Errorf("attempt 0: got %s", d)
	}
	if d := calculateBackoff(1, config); d != 20*time.Millisecond {
		t.Errorf("attempt 1: got %s", d)
	}
	if d := calculateBackoff(5, config); d != 40*time.Millisecond {
		t.Errorf("attempt 5 should cap at MaxDelay, got %s", d)
	}
}
