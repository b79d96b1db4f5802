package tx

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
)

// RetryPolicy bounds automatic re-execution of a write transaction.
type RetryPolicy struct {
	// MaxAttempts is the total number of runs, including the first one.
	MaxAttempts int

	// Backoff is multiplied by the attempt number between runs.
	Backoff time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 10ms linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     10 * time.Millisecond,
	}
}

// Retry runs fn in a fresh transaction and re-runs it while it fails with a
// retryable error (optimistic locking conflict). Any other error is returned
// immediately. fn must re-read everything it depends on.
func Retry(ctx context.Context, m Manager, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = m.RunInTransaction(ctx, fn)
		if err == nil || !apperror.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff * time.Duration(attempt)):
		}
	}

	return err
}
