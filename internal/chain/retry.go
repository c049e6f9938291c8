package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBackoff    = 100 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// RetryConfig controls retries of provider calls. The delay doubles after
// every failed attempt up to MaxBackoff.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (r RetryConfig) normalized() RetryConfig {
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	if r.Backoff <= 0 {
		r.Backoff = defaultBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = defaultMaxBackoff
	}
	if r.MaxBackoff < r.Backoff {
		r.MaxBackoff = r.Backoff
	}
	return r
}

// run calls fn until it succeeds, the attempts are spent or ctx is done. The
// final failure comes back as a ProviderError tagged with op.
func (r RetryConfig) run(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	r = r.normalized()
	delay := r.Backoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &ProviderError{Op: op, Err: err}
		}
		if attempt > r.MaxRetries {
			return &ProviderError{Op: op, Err: fmt.Errorf("after %d attempts: %w", attempt, err)}
		}

		logger.Debug("provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &ProviderError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}

		delay *= 2
		if delay > r.MaxBackoff {
			delay = r.MaxBackoff
		}
	}
}
