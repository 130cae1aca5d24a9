package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 2
	InitialBackoff    = 50 * time.Millisecond
	MaxBackoff        = 2 * time.Second
	BackoffMultiplier = 2.0
)

// WithRetry runs fn, retrying retryable faults with exponential backoff.
// Used around durable-store writes, which are best effort: callers log the
// final error and continue rather than failing the user-visible flow.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == MaxRetries {
			return err
		}

		time.Sleep(backoffDuration(attempt + 1))
	}

	return err
}

// IsRetryable reports whether the error is a retryable AppError. Plain
// errors from store clients are treated as retryable: a transient network
// blip is the common case for persistence writes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return true
}

func backoffDuration(attempt int) time.Duration {
	delay := float64(InitialBackoff) * math.Pow(BackoffMultiplier, float64(attempt))
	backoff := time.Duration(delay)
	if backoff > MaxBackoff {
		return MaxBackoff
	}

	return backoff
}
