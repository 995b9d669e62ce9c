package processor

import (
	"context"
	"errors"
	"time"

	"vaultindex/internal/model"
)

// withRetry retries fn with exponential backoff. Only persistence failures
// are retried; they are transient by assumption and safe to reapply because
// the idempotency layer makes reprocessing a no-op.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

func retryable(err error) bool {
	var dbErr *model.DatabaseError
	return errors.As(err, &dbErr)
}
