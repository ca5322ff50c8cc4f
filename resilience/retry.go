package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig defines how Retry backs off between attempts.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay. Zero means uncapped.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each retry.
	BackoffMultiplier float64

	// Jitter randomizes each delay to avoid thundering herds.
	Jitter bool

	// RetryableErrors decides whether an error is worth retrying.
	// Defaults to DefaultRetryableErrors.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the backoff schedule used when callers have no
// stronger opinion: up to 3 retries starting at 150ms, doubling, jittered.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    150 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// DefaultRetryableErrors treats every error as retryable except nil, open
// circuits and context cancellation.
func DefaultRetryableErrors(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Retry runs fn until it succeeds, returns a non-retryable error, exhausts
// config.MaxRetries or ctx is done during a backoff wait.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := RetryWithStats(ctx, config, fn)
	return err
}

// RetryStats describes what a RetryWithStats call did.
type RetryStats struct {
	TotalAttempts   int
	SuccessfulCalls int
	TotalRetries    int
	AverageBackoff  time.Duration
}

// RetryWithStats is Retry with attempt accounting for callers that meter
// their upstreams.
func RetryWithStats(ctx context.Context, config RetryConfig, fn func() error) (RetryStats, error) {
	if config.RetryableErrors == nil {
		config.RetryableErrors = DefaultRetryableErrors
	}

	var stats RetryStats
	var totalBackoff time.Duration
	finish := func(err error) (RetryStats, error) {
		if stats.TotalRetries > 0 {
			stats.AverageBackoff = totalBackoff / time.Duration(stats.TotalRetries)
		}
		return stats, err
	}

	for attempt := 0; ; attempt++ {
		stats.TotalAttempts++
		err := fn()
		if err == nil {
			stats.SuccessfulCalls++
			return finish(nil)
		}
		if attempt >= config.MaxRetries || !config.RetryableErrors(err) {
			return finish(err)
		}

		backoff := calculateBackoff(attempt, config)
		stats.TotalRetries++
		totalBackoff += backoff

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return finish(ctx.Err())
		}
	}
}

// ExponentialBackoff retries fn with a doubling, unjittered delay starting at
// initialBackoff.
func ExponentialBackoff(ctx context.Context, maxRetries int, initialBackoff time.Duration, fn func() error) error {
	return Retry(ctx, RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    initialBackoff,
		BackoffMultiplier: 2.0,
		RetryableErrors:   DefaultRetryableErrors,
	}, fn)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	if config.Jitter {
		backoff *= 0.9 + rand.Float64()*0.25
	}
	return time.Duration(backoff)
}
