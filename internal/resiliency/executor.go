// Path: internal/resiliency/executor.go
package resiliency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TerminationExitCode is the process exit code the supervisor watches for.
// EX_TEMPFAIL: the condition clears once the process is restarted with a
// fresh network identity.
const TerminationExitCode = 75

// QuotaError reports a key-specific quota or permission denial (HTTP 403).
// It is recoverable by rotating to a different key.
type QuotaError struct {
	Key    string
	Detail string
}

func (e *QuotaError) Error() string {
	tail := e.Key
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("quota exhausted for key ..%s: %s", tail, e.Detail)
}

// Termination reports a hard rate limit (HTTP 429) against the outbound
// network identity itself. No key rotation can recover it; the process must
// exit so the supervisor can restart it elsewhere. Every error-handling
// layer is required to pass this through untouched.
type Termination struct {
	Agent  string
	Detail string
}

func (e *Termination) Error() string {
	return fmt.Sprintf("hard rate limit (429) in %s: %s", e.Agent, e.Detail)
}

// IsTermination reports whether err carries the termination signal.
func IsTermination(err error) bool {
	var t *Termination
	return errors.As(err, &t)
}

// ExitCode maps a top-level error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if IsTermination(err) {
		return TerminationExitCode
	}
	return 1
}

// Executor drives a single outbound API call through key rotation.
type Executor struct {
	ring  *KeyRing
	agent string
	log   *slog.Logger
}

// NewExecutor wraps a key ring for one agent.
func NewExecutor(ring *KeyRing, agent string, log *slog.Logger) *Executor {
	return &Executor{ring: ring, agent: agent, log: log.With("agent", agent)}
}

// Ring exposes the underlying key ring.
func (e *Executor) Ring() *KeyRing {
	return e.ring
}

// Execute runs fn with the next key from the ring, rotating on quota errors
// for at most one full rotation. Round-robin advancement means each key is
// tried at most once per request.
//
// Outcome classes:
//   - success: the value is returned as-is;
//   - *QuotaError: rotate and retry; once the pool is exhausted the last
//     error surfaces as an ordinary failure;
//   - *Termination: returned immediately, never retried or absorbed;
//   - anything else: ordinary failure, no rotation.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := e.ring.Size()
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		key := e.ring.Next()
		v, err := fn(ctx, key)
		if err == nil {
			return v, nil
		}

		if IsTermination(err) {
			e.log.Error("hard rate limit observed, terminating", "error", err)
			return zero, err
		}

		var quota *QuotaError
		if errors.As(err, &quota) {
			lastErr = err
			e.log.Warn("key burned, rotating", "attempt", i+1, "of", attempts, "error", err)
			continue
		}

		// Transient/network/protocol failure: not the key's fault, so
		// rotating would only waste the pool.
		return zero, err
	}

	return zero, fmt.Errorf("all %d keys exhausted: %w", attempts, lastErr)
}
