package rpc

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/relaypoint/mcpgw/internal/errors"
)

// RetryPolicy is an explicit bounded-retry policy: attempt delay is
// base * multiplier^attempt, capped at Cap.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// Multiplier scales the delay for each subsequent retry.
	Multiplier float64

	// Cap bounds the delay between attempts.
	Cap time.Duration
}

// DefaultRetryPolicy returns the documented default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		Multiplier:  2.0,
		Cap:         10 * time.Second,
	}
}

// Delay returns the backoff delay preceding the given retry attempt
// (attempt 0 is the first retry).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BackoffBase) * math.Pow(p.Multiplier, float64(attempt)))
	if delay > p.Cap || delay <= 0 {
		return p.Cap
	}
	return delay
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase <= 0 {
		return fmt.Errorf("retry backoff base must be positive, got %v", p.BackoffBase)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1, got %v", p.Multiplier)
	}
	if p.Cap < p.BackoffBase {
		return fmt.Errorf("retry cap %v must not be below backoff base %v", p.Cap, p.BackoffBase)
	}
	return nil
}

// SendWithRetry wraps Send with bounded attempts and exponential backoff.
// Used for capability-invoking calls; catalog-listing calls use Send directly
// with a short fixed timeout so a slow backend cannot stall aggregation.
//
// Logical upstream errors and unrecovered session expiry are surfaced without
// retry: repeating them wastes attempts. Transport failures, non-success HTTP
// statuses, and parse failures are considered transient.
func (c *Client) SendWithRetry(ctx context.Context, call Call) (*Response, error) {
	if call.BackendID != "" {
		// Lazily establish a session before the first attempt; failure here
		// is fine, the call proceeds stateless.
		c.EnsureSession(ctx, call.Endpoint, call.BackendID)
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Delay(attempt - 1)
			c.logger.Debug(
				"retrying backend call",
				"method", call.Method,
				"backend", call.BackendID,
				"attempt", attempt+1,
				"delay", delay,
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %w", errors.ErrTransport, ctx.Err())
			case <-timer.C:
			}
		}

		envelope, err := c.Send(ctx, call)
		if err == nil {
			return envelope, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", errors.ErrRetryExhausted, c.retry.MaxAttempts, lastErr)
}

// retryable reports whether an error class may succeed on a fresh attempt.
func retryable(err error) bool {
	switch {
	case stdErrors.Is(err, errors.ErrRPC):
		return false
	case stdErrors.Is(err, errors.ErrSessionExpired):
		return false
	default:
		return true
	}
}
