package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/domain"
)

// Manager wraps operations with exponential-backoff retries. The operation
// passed in is expected to already be composed with the circuit breaker;
// this layer only decides whether and when to call it again.
type Manager struct {
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger
}

// NewManager creates a Manager making up to maxRetries additional attempts
// after the first, starting from baseDelay between attempts.
func NewManager(maxRetries int, baseDelay time.Duration, log *slog.Logger) *Manager {
	return &Manager{maxRetries: maxRetries, baseDelay: baseDelay, log: log}
}

// Do runs op, retrying transient failures with exponential backoff and
// jitter. Validation, authentication, and rate-limit errors propagate
// immediately. There is no delay before the first attempt; delay n is
// baseDelay × 2^(n−1) plus up to 10% jitter. When retries are exhausted the
// last error is returned, tagged with the number of attempts made.
func (m *Manager) Do(ctx context.Context, name string, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= m.maxRetries+1; attempt++ {
		if attempt > 1 {
			delay := m.backoff(attempt - 1)
			m.log.Info("retrying operation",
				"operation", name,
				"attempt", attempt,
				"delay", delay.String(),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op()
		if err == nil {
			if attempt > 1 {
				m.log.Info("operation recovered", "operation", name, "attempts", attempt)
			}
			return nil
		}
		lastErr = err

		// An open circuit already sheds load on its own cooldown clock;
		// backing off here as well would just stack delays on the caller.
		if !domain.IsRetryable(err) || errors.Is(err, breaker.ErrOpen) {
			m.log.Warn("operation failed permanently",
				"operation", name,
				"attempt", attempt,
				"err", err,
			)
			return err
		}
		m.log.Warn("operation attempt failed",
			"operation", name,
			"attempt", attempt,
			"err", err,
		)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, m.maxRetries+1, lastErr)
}

// backoff computes the delay before attempt n+1: baseDelay × 2^(n−1),
// with up to 10% jitter so concurrent retries don't align.
func (m *Manager) backoff(n int) time.Duration {
	d := m.baseDelay << uint(n-1)
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}
