package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastRetry keeps backoff in the millisecond range so tests stay quick.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func alwaysClass(class ErrorClass) func(error) ErrorClass {
	return func(error) ErrorClass { return class }
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	base := fastRetry(3)

	tests := []struct {
		name        string
		errorClass  ErrorClass
		wantInitial time.Duration
	}{
		{"server keeps base backoff", ErrorClassServer, 10 * time.Millisecond},
		{"rate limit waits five times longer", ErrorClassRateLimit, 50 * time.Millisecond},
		{"network waits twice as long", ErrorClassNetwork, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RetryConfigForErrorClass(base, tt.errorClass)
			if cfg.InitialBackoff != tt.wantInitial {
				t.Errorf("InitialBackoff = %v, want %v", cfg.InitialBackoff, tt.wantInitial)
			}
			if cfg.MaxAttempts != base.MaxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, base.MaxAttempts)
			}
		})
	}

	capped := RetryConfigForErrorClass(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second}, ErrorClassRateLimit)
	if capped.InitialBackoff != 2*time.Second {
		t.Errorf("capped InitialBackoff = %v, want 2s", capped.InitialBackoff)
	}
}

func TestRetryWithBackoff_SingleAttempt(t *testing.T) {
	testErr := errors.New("boom")
	callCount := 0

	err := retryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		callCount++
		return testErr
	}, alwaysClass(ErrorClassServer))

	if !errors.Is(err, testErr) || errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected the original error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, alwaysClass(ErrorClassServer))

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	testErr := errors.New("persistent error")
	callCount := 0

	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		return testErr
	}, alwaysClass(ErrorClassServer))

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorNoRetry(t *testing.T) {
	testErr := errors.New("client error")
	callCount := 0

	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		return testErr
	}, alwaysClass(ErrorClassClient))

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted for client errors")
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Second

	err := retryWithBackoff(ctx, cfg, func() error {
		callCount++
		cancel()
		return errors.New("server error")
	}, alwaysClass(ErrorClassServer))

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var calls []time.Time

	_ = retryWithBackoff(context.Background(), fastRetry(4), func() error {
		calls = append(calls, time.Now())
		return errors.New("server error")
	}, alwaysClass(ErrorClassServer))

	if len(calls) != 4 {
		t.Fatalf("Expected 4 calls, got %d", len(calls))
	}

	// 10ms, 20ms, 40ms with ±20% jitter
	minGaps := []time.Duration{8 * time.Millisecond, 16 * time.Millisecond, 32 * time.Millisecond}
	for i, min := range minGaps {
		if gap := calls[i+1].Sub(calls[i]); gap < min {
			t.Errorf("gap %d = %v, want >= %v", i, gap, min)
		}
	}
}

func TestRetryWithBackoff_RateLimitLongerBackoff(t *testing.T) {
	var calls []time.Time

	_ = retryWithBackoff(context.Background(), fastRetry(2), func() error {
		calls = append(calls, time.Now())
		return errors.New("rate limited")
	}, alwaysClass(ErrorClassRateLimit))

	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if gap := calls[1].Sub(calls[0]); gap < 40*time.Millisecond {
		t.Errorf("rate limit backoff = %v, want >= 40ms", gap)
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        25 * time.Millisecond,
		BackoffMultiplier: 10,
	}

	var calls []time.Time
	_ = retryWithBackoff(context.Background(), cfg, func() error {
		calls = append(calls, time.Now())
		return errors.New("server error")
	}, alwaysClass(ErrorClassServer))

	for i := 1; i < len(calls); i++ {
		// 25ms cap + 20% jitter + scheduling slack
		if gap := calls[i].Sub(calls[i-1]); gap > 200*time.Millisecond {
			t.Errorf("gap %d = %v exceeds capped backoff", i, gap)
		}
	}
}
