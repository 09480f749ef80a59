package chain

import (
	"context"
	"time"
)

// RetryPolicy bounds an exponential backoff.
type RetryPolicy struct {
	Retries  int
	MinDelay time.Duration
	MaxDelay time.Duration
}

// WithRetry runs fn until it succeeds, the retries are used up or ctx ends.
// The delay doubles after each failure and is capped at MaxDelay.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	maxRetries := policy.Retries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := policy.MinDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}
