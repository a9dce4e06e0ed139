// Path: internal/resiliency/retry.go
package resiliency

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times with exponential backoff, doubling the
// delay after each failure. Termination errors and context cancellation are
// never retried. The last error is returned once attempts are spent.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for i := 0; i < attempts; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsTermination(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}
