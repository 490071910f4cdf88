package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// RetryPolicy bounds the attempts of a single remote mutation
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, including the first
	MaxAttempts int
	// Delay is the fixed wait between attempts
	Delay time.Duration
	// Retryable decides whether a failed attempt is worth repeating
	Retryable func(error) bool
	// OnRetry is called before each repeated attempt
	OnRetry func(attempt int, err error)

	sleep SleepFunc
}

// DefaultRetryPolicy returns 3 attempts, 2 seconds apart, retrying every
// error except invalid payloads and authentication failures
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Retryable:   integration.IsRetryable,
	}
}

// WithSleep replaces the inter-attempt sleep
func (p RetryPolicy) WithSleep(fn SleepFunc) RetryPolicy {
	p.sleep = fn
	return p
}

// Validate validates the policy
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry attempts must be positive", ErrInvalidConfig)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Retry invokes fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is wrapped with ErrRetriesExhausted.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for operations that return a value
func RetryValue[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return zero, fmt.Errorf("%w: %w", serr, lastErr)
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// SleepContext blocks for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
