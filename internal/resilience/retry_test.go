package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Multiplier:  2.0,
		JitterBound: 0,
	}
}

func TestDelayForSchedule(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 16 * time.Second},
		{7, 32 * time.Second},
		{8, 60 * time.Second}, // capped
		{9, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.DelayFor(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelayForCapWithLargeAttempt(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}

	// Deep attempt counts must not overflow past the cap
	assert.Equal(t, 60*time.Second, policy.DelayFor(500))
}

func TestRetrierSucceedsFirstTry(t *testing.T) {
	retrier := NewRetrier(fastPolicy(3), nil, nil)

	calls := 0
	err := retrier.Execute(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrierRecoversFromTransientFailure(t *testing.T) {
	retrier := NewRetrier(fastPolicy(3), nil, nil)

	calls := 0
	err := retrier.Execute(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierLogsComputedDelay(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	retrier := NewRetrier(fastPolicy(3), nil, logger)

	calls := 0
	err := retrier.Execute(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)

	// Each retry warning carries the delay the backoff will actually wait:
	// 1ms before attempt 2, 2ms before attempt 3 (jitter disabled).
	wantDelays := map[float64]float64{
		1: float64(1 * time.Millisecond),
		2: float64(2 * time.Millisecond),
	}

	seen := 0
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		if rec["msg"] != "retrying after transient failure" {
			continue
		}
		seen++
		attempt, ok := rec["attempt"].(float64)
		require.True(t, ok)
		delay, ok := rec["delay"].(float64)
		require.True(t, ok, "retry warning must include the computed delay")
		assert.Equal(t, wantDelays[attempt], delay)
	}
	assert.Equal(t, 2, seen)
}

func TestRetrierStopsOnPermanentFailure(t *testing.T) {
	retrier := NewRetrier(fastPolicy(5), nil, nil)

	permanent := types.NewError(types.CONFIG_VALIDATION_FAILED, "bad config")
	calls := 0
	err := retrier.Execute(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent failures must not be retried")
	assert.ErrorIs(t, err, permanent)
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	retrier := NewRetrier(fastPolicy(3), nil, nil)

	calls := 0
	err := retrier.Execute(context.Background(), "engine.event_generation", func(ctx context.Context) error {
		calls++
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	code, ok := types.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, types.RETRY_EXHAUSTED, code)
	assert.Contains(t, err.Error(), "database is locked", "cause must be preserved")
	assert.Contains(t, err.Error(), "engine.event_generation")
}

func TestRetrierRespectsCancellation(t *testing.T) {
	policy := fastPolicy(5)
	policy.BaseDelay = 100 * time.Millisecond
	retrier := NewRetrier(policy, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retrier.Execute(ctx, "test.op", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must stop further attempts")
}
