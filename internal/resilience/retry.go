package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// RetryPolicy holds exponential backoff settings for one operation class.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	JitterBound time.Duration
}

// DefaultRetryPolicy returns the standard policy for engine and checkpoint
// operations.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
		JitterBound: 500 * time.Millisecond,
	}
}

// DelayFor returns the deterministic backoff delay before the given attempt.
// Attempt 1 runs immediately; attempt 2 waits BaseDelay; each later attempt
// multiplies the previous delay, capped at MaxDelay. Jitter is added
// separately at execution time.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(p.BaseDelay)
	for i := 3; i <= attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retrier executes operations with retry on transient failures. Whether a
// failure is transient is decided by the classifier, not by the caller.
type Retrier struct {
	policy     RetryPolicy
	classifier *Classifier
	logger     *slog.Logger
}

// NewRetrier creates a retrier with the given policy. A nil classifier or
// logger falls back to the package defaults.
func NewRetrier(policy RetryPolicy, classifier *Classifier, logger *slog.Logger) *Retrier {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		policy:     policy,
		classifier: classifier,
		logger:     logger,
	}
}

// Execute runs fn, retrying transient failures with exponential backoff plus
// uniform jitter. Permanent failures return immediately. When all attempts
// are exhausted the last error is wrapped with RETRY_EXHAUSTED, preserving
// the cause.
func (r *Retrier) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempt := 0
	exhausted := false

	// nextDelay is computed (and logged) where the failure is observed, then
	// handed to the backoff unchanged so the log matches the actual wait.
	var nextDelay time.Duration

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= r.policy.MaxAttempts {
			exhausted = true
			return 0, true
		}
		return nextDelay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !r.classifier.Retryable(err) {
			return err
		}
		if attempt < r.policy.MaxAttempts {
			nextDelay = r.policy.DelayFor(attempt + 1)
			if r.policy.JitterBound > 0 {
				nextDelay += time.Duration(rand.Int63n(int64(r.policy.JitterBound)))
			}
			r.logger.Warn("retrying after transient failure",
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", r.policy.MaxAttempts),
				slog.Duration("delay", nextDelay),
				slog.String("error", err.Error()))
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if exhausted {
		return types.WrapError(types.RETRY_EXHAUSTED,
			fmt.Sprintf("operation %s failed after %d attempts", operation, attempt), err)
	}
	return err
}
