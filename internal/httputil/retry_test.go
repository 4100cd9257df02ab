// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSleep replaces the package sleep with an instant recorder and returns
// the slice of observed backoffs.
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	old := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = old })
	return &slept
}

func TestBackoffForAttempt(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},  // 32s capped
		{20, 30 * time.Second}, // far past the cap
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.BackoffForAttempt(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDo_ImmediateSuccess(t *testing.T) {
	slept := stubSleep(t)

	calls := 0
	got, err := Do(context.Background(), DefaultRetryConfig(), "op",
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		},
		Retryable,
	)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	slept := stubSleep(t)
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2.0}

	calls := 0
	got, err := Do(context.Background(), cfg, "op",
		func(ctx context.Context) (int, error) {
			calls++
			if calls <= 2 {
				return 0, Errorf(KindServer, "http 503")
			}
			return 42, nil
		},
		Retryable,
	)

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	slept := stubSleep(t)
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2.0}

	calls := 0
	cause := Errorf(KindTransport, "connection refused")
	_, err := Do(context.Background(), cfg, "op",
		func(ctx context.Context) (string, error) {
			calls++
			return "", cause
		},
		Retryable,
	)

	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	// 1 initial + 2 retries = 3 calls, with a sleep before each retry.
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
}

func TestDo_TerminalErrorReturnsImmediately(t *testing.T) {
	slept := stubSleep(t)

	calls := 0
	_, err := Do(context.Background(), DefaultRetryConfig(), "op",
		func(ctx context.Context) (string, error) {
			calls++
			return "", Errorf(KindClient, "http 404")
		},
		Retryable,
	)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept, "terminal errors must not sleep")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	old := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	t.Cleanup(func() { sleep = old })

	calls := 0
	_, err := Do(context.Background(), DefaultRetryConfig(), "op",
		func(ctx context.Context) (string, error) {
			calls++
			return "", Errorf(KindServer, "http 503")
		},
		Retryable,
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroRetriesSingleAttempt(t *testing.T) {
	slept := stubSleep(t)
	cfg := RetryConfig{MaxRetries: 0, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2.0}

	calls := 0
	_, err := Do(context.Background(), cfg, "op",
		func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		},
		Retryable,
	)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}
