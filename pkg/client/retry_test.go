package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func classifyServer(error) ErrorClass  { return ErrorClassServer }
func classifyClient(error) ErrorClass  { return ErrorClassClient }
func classifyNetwork(error) ErrorClass { return ErrorClassNetwork }

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	}, classifyServer)

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RetriesTransientFailure(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, classifyNetwork)

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return errors.New("always down")
	}, classifyServer)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	wantErr := errors.New("bad request")
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return wantErr
	}, classifyClient)

	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want original error", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client error was wrapped as retry exhaustion")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 1.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := retryWithBackoff(ctx, cfg, func() error {
		calls++
		return errors.New("down")
	}, classifyServer)

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during first backoff)", calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{status: 429, want: ErrorClassRateLimit},
		{status: 400, want: ErrorClassClient},
		{status: 404, want: ErrorClassClient},
		{status: 500, want: ErrorClassServer},
		{status: 503, want: ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
