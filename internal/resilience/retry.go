package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy is used when a caller registers nothing specific.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier runs operations with bounded exponential backoff.
type Retrier struct {
	policy RetryPolicy
	logger *logrus.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier for the given policy.
func NewRetrier(policy RetryPolicy, logger *logrus.Logger) *Retrier {
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Retrier{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do executes operation until it succeeds, returns a permanent error,
// the context is cancelled, or MaxRetries retries have been spent.
func (r *Retrier) Do(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	start := time.Now()
	delay := r.policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == r.policy.MaxRetries {
			break
		}

		wait := r.calculateDelay(delay)
		r.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     wait,
		}).Warn("Operation failed, retrying")

		if err := r.sleep(ctx, wait); err != nil {
			return lastErr
		}

		delay = time.Duration(float64(delay) * r.policy.BackoffFactor)
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}

	r.logger.WithFields(logrus.Fields{
		"operation": operationName,
		"attempts":  r.policy.MaxRetries + 1,
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")

	return lastErr
}

// calculateDelay adds up to 25% jitter in either direction.
func (r *Retrier) calculateDelay(base time.Duration) time.Duration {
	if !r.policy.JitterEnabled || base <= 0 {
		return base
	}
	jitter := time.Duration(float64(base) * 0.25 * (rand.Float64()*2 - 1))
	return base + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
