package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	attempts := 0
	err := RetryConfig{MaxRetries: 3, Backoff: time.Millisecond}.run(context.Background(), zap.New(core), "get_logs", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 retry logs, got %d", len(entries))
	}
	fields := entries[1].ContextMap()
	if fields["op"] != "get_logs" || fields["attempt"] != int64(2) {
		t.Fatalf("unexpected log fields: %v", fields)
	}
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := RetryConfig{MaxRetries: 2, Backoff: time.Millisecond}.run(context.Background(), zap.NewNop(), "call", func(context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Op != "call" {
		t.Fatalf("expected ProviderError for call, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := RetryConfig{MaxRetries: 5, Backoff: time.Hour}.run(ctx, zap.NewNop(), "block_height", func(context.Context) error {
		attempts++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}

func TestRetryDoesNotRetryCanceledCall(t *testing.T) {
	attempts := 0
	err := RetryConfig{MaxRetries: 5, Backoff: time.Millisecond}.run(context.Background(), zap.NewNop(), "call", func(context.Context) error {
		attempts++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts mismatch: %d", attempts)
	}
}

func TestRetryBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{Backoff: time.Second, MaxBackoff: time.Millisecond}.normalized()
	if cfg.MaxBackoff != time.Second {
		t.Fatalf("max backoff below base: %v", cfg.MaxBackoff)
	}
	cfg = RetryConfig{MaxRetries: -1}.normalized()
	if cfg.MaxRetries != 0 || cfg.Backoff != defaultBackoff || cfg.MaxBackoff != defaultMaxBackoff {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := error(&ProviderError{Op: "get_logs", Err: inner})
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error")
	}
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Op != "get_logs" {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}
