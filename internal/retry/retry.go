package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// DelayHint lets an error ask for a longer wait, e.g. from a Retry-After header
	DelayHint func(error) (time.Duration, bool)

	// OnRetry is called before each wait with the failed attempt number
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns sensible defaults for retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// IsRetryable is a function that determines if an error should trigger a retry
type IsRetryable func(error) bool

// sleep waits for d or until ctx is done; replaced in tests
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes fn with exponential backoff while isRetryable approves the error
func Do(ctx context.Context, cfg Config, fn func(context.Context) error, isRetryable IsRetryable) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, isRetryable)
	return err
}

// DoWithResult executes fn with exponential backoff and returns its last result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error), isRetryable IsRetryable) (T, error) {
	var result T
	var err error

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		if isRetryable == nil || !isRetryable(err) {
			return result, err
		}

		// Don't sleep after last attempt
		if attempt == maxAttempts {
			return result, err
		}

		delay := Backoff(attempt, cfg)
		if cfg.DelayHint != nil {
			if hint, ok := cfg.DelayHint(err); ok && hint > delay {
				delay = hint
				if cfg.MaxBackoff > 0 {
					delay = min(delay, cfg.MaxBackoff)
				}
			}
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}

// calculateBackoff adds jitter to prevent thundering herd
func calculateBackoff(backoff time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return backoff
	}

	jitter := float64(backoff) * jitterFraction
	randomJitter := (rand.Float64()*2 - 1) * jitter

	result := float64(backoff) + randomJitter
	if result < 0 {
		result = 0
	}

	return time.Duration(result)
}

// Backoff calculates the wait after the given failed attempt (1-based)
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 2
	}

	backoff := float64(cfg.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	duration := time.Duration(backoff)

	if cfg.MaxBackoff > 0 && (duration > cfg.MaxBackoff || backoff > float64(math.MaxInt64)) {
		duration = cfg.MaxBackoff
	}

	return calculateBackoff(duration, cfg.JitterFraction)
}
