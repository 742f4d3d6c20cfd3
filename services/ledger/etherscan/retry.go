// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package etherscan

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Zero retries until success or cancellation.
	// Default: 8
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`

	// InitialBackoff is the wait before the first retry.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the wait between retries.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffFactor is the multiplier applied after every retry.
	// Default: 2.0
	BackoffFactor float64 `yaml:"backoff_factor"`

	// JitterFactor is the maximum jitter as a fraction of the backoff (0-1).
	// Default: 0.2
	JitterFactor float64 `yaml:"jitter_factor"`
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    8,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Validate checks if the retry configuration is valid.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return ErrInvalidRetryConfig
	}
	if c.InitialBackoff <= 0 {
		return ErrInvalidRetryConfig
	}
	if c.MaxBackoff < c.InitialBackoff {
		return ErrInvalidRetryConfig
	}
	if c.BackoffFactor < 1.0 {
		return ErrInvalidRetryConfig
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ErrInvalidRetryConfig
	}
	return nil
}

// RetryResult contains the outcome of a retry operation.
type RetryResult struct {
	// Attempts is the number of attempts made.
	Attempts int

	// TotalDuration is the total time spent including waits.
	TotalDuration time.Duration

	// LastError is the error from the last attempt (nil if successful).
	LastError error
}

// RetryableFunc is one attempt. attempt starts at 1.
type RetryableFunc func(ctx context.Context, attempt int) error

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is done.
//
// When cb is non-nil the call is gated once by cb.Allow before the first
// attempt and fails fast with ErrCircuitOpen if the breaker rejects it.
// The breaker sees one outcome per call: a success, or a single failure
// once the attempts are used up. Transient errors between attempts only
// back off, so an unbounded policy is never cut short by the breaker.
//
// Example:
//
//	result, err := Retry(ctx, DefaultRetryConfig(), breaker, func(ctx context.Context, attempt int) error {
//	    return fetch(ctx)
//	})
func Retry(ctx context.Context, config RetryConfig, cb *CircuitBreaker, fn RetryableFunc) (RetryResult, error) {
	start := time.Now()
	result := RetryResult{}

	backoff := config.InitialBackoff

	if cb != nil && !cb.Allow() {
		result.LastError = ErrCircuitOpen
		return result, ErrCircuitOpen
	}

	for attempt := 1; config.MaxAttempts == 0 || attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(start)
			return result, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			result.LastError = nil
			result.TotalDuration = time.Since(start)
			return result, nil
		}

		result.LastError = err
		if !IsRetryable(err) {
			result.TotalDuration = time.Since(start)
			return result, err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(calculateBackoff(backoff, config.JitterFactor)):
		}

		backoff = nextBackoff(backoff, config.BackoffFactor, config.MaxBackoff)
	}

	if cb != nil {
		cb.RecordFailure()
	}
	result.TotalDuration = time.Since(start)
	return result, result.LastError
}

// calculateBackoff returns base scaled by a random factor in
// [1-jitter, 1+jitter].
func calculateBackoff(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
