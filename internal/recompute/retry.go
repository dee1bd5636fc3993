package recompute

import (
	"context"
	"fmt"
	"time"

	"github.com/lutefd/draftpoints-api/internal/storage"
)

// RetryPolicy retries transient persistence failures with exponential
// backoff. Fatal errors and context cancellation return immediately.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// Execute runs fn until it succeeds, fails fatally or attempts run out. It
// returns the number of retries performed alongside the final error.
func (p RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt - 1, nil
		}
		lastErr = err
		if !storage.IsTransient(err) || ctx.Err() != nil {
			return attempt - 1, err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt - 1, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * 1.5)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return attempts - 1, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
