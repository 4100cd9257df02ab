// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: the retry
// executor with exponential backoff and the closed error taxonomy.
package httputil

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig controls the backoff schedule for a retried operation.
// It is a pure value; BackoffForAttempt is deterministic given (attempt, config).
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first call.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	// MaxBackoff caps the computed delay.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
	// Multiplier is the exponential growth factor.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// DefaultRetryConfig matches the schedule used by most adapters:
// 500 ms, 1 s, 2 s, capped at 30 s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// BackoffForAttempt returns the delay before retrying attempt n (0-indexed):
// InitialBackoff * Multiplier^n, capped at MaxBackoff.
func (c RetryConfig) BackoffForAttempt(attempt int) time.Duration {
	backoff := time.Duration(float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt)))
	if backoff > c.MaxBackoff || backoff < 0 {
		return c.MaxBackoff
	}
	return backoff
}

// sleep waits out the backoff. Declared as a var so tests can count sleeps
// without waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do executes op, retrying on failures that retryable accepts. Terminal
// errors return immediately with zero sleeps. Each retry logs the attempt;
// the log stream is telemetry only, not part of the contract.
func Do[T any](ctx context.Context, cfg RetryConfig, name string, op func(context.Context) (T, error), retryable func(error) bool) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debug().Str("op", name).Int("attempt", attempt+1).Msg("succeeded after retry")
			}
			return result, nil
		}

		// Out of attempts, or a terminal error — no sleep, return as-is.
		if attempt >= cfg.MaxRetries || !retryable(err) {
			return zero, err
		}

		backoff := cfg.BackoffForAttempt(attempt)
		log.Warn().Str("op", name).Int("attempt", attempt+1).
			Dur("backoff", backoff).Err(err).Msg("retrying")

		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return zero, sleepErr
		}
	}
}
