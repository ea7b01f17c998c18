// Package retry wraps calls to the rate-limited AI endpoints in bounded
// exponential backoff.
package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	apperrors "fridgetrack-sync/internal/common/errors"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1000 * time.Millisecond
	DefaultMaxJitter  = 500 * time.Millisecond
)

// Attempt describes one scheduled retry.
type Attempt struct {
	Number int // 0-based index of the attempt that just failed
	Delay  time.Duration
	Err    *apperrors.StructuredError
}

// Policy controls which failures are retried and how long to wait.
type Policy struct {
	Operation  string
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration

	// Retryable decides whether a classified failure may be retried.
	// Defaults to 429 and 503 only.
	Retryable func(err *apperrors.StructuredError) bool
	// Sleep waits for d or until ctx is done. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a random duration in [0, max].
	Jitter  func(max time.Duration) time.Duration
	OnRetry func(a Attempt)
	Logger  logger.Logger
}

// DefaultPolicy retries up to three times with 1s base delay and up to
// 500ms of jitter.
func DefaultPolicy(operation string) Policy {
	return Policy{
		Operation:  operation,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxJitter:  DefaultMaxJitter,
	}
}

// Delay returns base*2^attempt plus jitter for the given 0-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	delay := base * time.Duration(uint(1)<<uint(attempt))
	jitter := p.Jitter
	if jitter == nil {
		jitter = randomJitter
	}
	if p.MaxJitter > 0 {
		delay += jitter(p.MaxJitter)
	}
	return delay
}

// Do runs fn, retrying rate-limited failures. The most recent error is
// returned unchanged once retries are exhausted or the failure is not
// retryable.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err *apperrors.StructuredError) bool { return apperrors.IsRateLimited(err) }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := logger.OrNop(p.Logger)

	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		se := apperrors.Ensure(err)
		if attempt >= p.MaxRetries || !retryable(se) {
			var zero T
			return zero, se
		}

		delay := p.Delay(attempt)
		metrics.RetryAttempts.WithLabelValues(p.Operation, statusLabel(se.Status)).Inc()
		log.Warn("retrying after rate-limited response", map[string]interface{}{
			"operation": p.Operation,
			"attempt":   attempt + 1,
			"status":    se.Status,
			"delayMs":   delay.Milliseconds(),
		})
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempt, Delay: delay, Err: se})
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			var zero T
			return zero, se
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	rngMu.Lock()
	defer rngMu.Unlock()
	return time.Duration(rng.Int63n(int64(max) + 1))
}

func statusLabel(status int) string {
	switch status {
	case 429:
		return "429"
	case 503:
		return "503"
	}
	return "other"
}
