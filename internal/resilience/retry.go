package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// 1 means no retries.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay.
	JitterFraction float64
}

// RetryN returns a RetryConfig for maxRetries retries on top of the initial
// attempt. maxRetries <= 0 yields a single attempt.
func RetryN(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxRetries + 1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do executes fn, retrying transient failures per cfg. Non-transient errors
// and context cancellation return immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
		if delay > float64(cfg.MaxBackoff) {
			delay = float64(cfg.MaxBackoff)
		}
		if cfg.JitterFraction > 0 {
			delay += delay * cfg.JitterFraction * (2*rand.Float64() - 1)
		}

		zap.L().Debug("resilience: retrying after transient error",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", time.Duration(delay)),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(delay)):
		}
	}
	return lastErr
}
