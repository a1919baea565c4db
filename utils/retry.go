package utils

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// RetryWithBackoff retries fn up to maxRetries times with quadratic backoff.
// base is the unit of the backoff (attempt² × base).
func RetryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func() error, logger *Logger) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * base
			logger.Warn("Retrying (attempt %d/%d) after %v...", attempt+1, maxRetries, backoff)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(backoff):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			logger.Warn("Attempt %d failed: %v", attempt+1, err)
			continue
		}
		return nil
	}
	return errors.Wrapf(lastErr, "all %d attempts failed", maxRetries)
}
