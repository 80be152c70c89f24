// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted is returned (wrapped together with the last failure) when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Strategy defines a retry policy.
type Strategy struct {
	Attempts int           // Total number of attempts, including the first one
	Delay    time.Duration // Delay before the second attempt
	Backoff  float64       // Multiplier applied to the delay after every failed attempt
}

// Wait returns the delay to sleep after the given failed attempt (1-based).
func (s Strategy) Wait(attempt int) time.Duration {
	if attempt < 1 || s.Delay <= 0 {
		return 0
	}

	backoff := s.Backoff
	if backoff < 1 {
		backoff = 1
	}

	return time.Duration(float64(s.Delay) * math.Pow(backoff, float64(attempt-1)))
}

type options struct {
	retryable func(error) bool
	onRetry   func(attempt int, err error, wait time.Duration)
}

// Option customizes a single Do call.
type Option func(*options)

// Retryable restricts retries to errors for which fn returns true.
// Other errors are returned immediately.
func Retryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// OnRetry registers a callback invoked before each wait between attempts.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is canceled. fn receives the 1-based attempt number.
func Do(ctx context.Context, s Strategy, fn func(attempt int) error, opts ...Option) error {
	o := options{retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !o.retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		wait := s.Wait(attempt)
		if o.onRetry != nil {
			o.onRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
