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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		BackoffFactor:  2,
		JitterFactor:   0.2,
	}
}

var errTransient = &FetchError{Address: "0x1", Reason: "transport", Err: errors.New("reset")}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RetryConfig)
		wantErr bool
	}{
		{"default", func(*RetryConfig) {}, false},
		{"unbounded", func(c *RetryConfig) { c.MaxAttempts = 0 }, false},
		{"negative attempts", func(c *RetryConfig) { c.MaxAttempts = -1 }, true},
		{"zero backoff", func(c *RetryConfig) { c.InitialBackoff = 0 }, true},
		{"max below initial", func(c *RetryConfig) { c.MaxBackoff = time.Millisecond }, true},
		{"shrinking factor", func(c *RetryConfig) { c.BackoffFactor = 0.9 }, true},
		{"jitter above one", func(c *RetryConfig) { c.JitterFactor = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRetryConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRetryConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int32
	result, err := Retry(context.Background(), fastRetry(5), nil, func(ctx context.Context, attempt int) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Nil(t, result.LastError)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	result, err := Retry(context.Background(), fastRetry(5), nil, func(context.Context, int) error {
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, result.Attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	result, err := Retry(context.Background(), fastRetry(4), nil, func(context.Context, int) error {
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, result.Attempts)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastRetry(0)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	result, err := Retry(ctx, cfg, nil, func(context.Context, int) error {
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Attempts)
}

func TestRetry_UnboundedWithDefaultBreaker(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	var calls int32
	result, err := Retry(context.Background(), fastRetry(0), cb, func(context.Context, int) error {
		if atomic.AddInt32(&calls, 1) <= 10 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 11, result.Attempts)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestRetry_CircuitBreaker(t *testing.T) {
	tests := []struct {
		name      string
		calls     int
		wantErr   error
		wantState CircuitState
		wantFns   int32
	}{
		{"one exhausted call stays closed", 1, nil, CircuitClosed, 3},
		{"threshold exhausted calls open", 2, nil, CircuitOpen, 6},
		{"open breaker fails fast", 3, ErrCircuitOpen, CircuitOpen, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour})
			var fns int32
			var err error
			for i := 0; i < tt.calls; i++ {
				_, err = Retry(context.Background(), fastRetry(3), cb, func(context.Context, int) error {
					atomic.AddInt32(&fns, 1)
					return errTransient
				})
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.ErrorIs(t, err, errTransient)
			}
			assert.Equal(t, tt.wantState, cb.State())
			assert.Equal(t, tt.wantFns, atomic.LoadInt32(&fns))
		})
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 2, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 2, 30*time.Second))
}

func TestCalculateBackoff_JitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := calculateBackoff(base, 0.2)
		assert.GreaterOrEqual(t, got, 80*time.Millisecond)
		assert.LessOrEqual(t, got, 120*time.Millisecond)
	}
	assert.Equal(t, base, calculateBackoff(base, 0))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errTransient))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(errors.New("plain")))
}
