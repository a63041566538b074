package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bank-reconciliation-engine/internal/apperr"
)

// withRetry runs op until it succeeds, fails with a non-retryable error, or
// attempts are exhausted. The delay doubles after every failed attempt.
func withRetry(ctx context.Context, logger *slog.Logger, attempts int, backoff time.Duration, op func(attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	delay := backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(attempt); err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("commit lost a race, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
