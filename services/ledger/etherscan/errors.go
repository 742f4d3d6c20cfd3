// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package etherscan fetches account transaction lists from the Etherscan
// account/txlist endpoint.
//
// Every request passes a client-side rate limiter and is retried with
// exponential backoff and jitter. A circuit breaker counts consecutive failed
// attempts across addresses; while it is open, calls fail fast with
// ErrCircuitOpen.
//
// The API key lives in a memguard enclave and is only decrypted for the
// duration of building a request URL. Errors never carry request URLs.
package etherscan

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("etherscan: circuit breaker is open")

	// ErrEmptyAPIKey is returned when the API key is blank.
	ErrEmptyAPIKey = errors.New("etherscan: API key is empty")

	// ErrInvalidAddress is returned for addresses that are not 20-byte hex.
	ErrInvalidAddress = errors.New("etherscan: invalid address")

	// ErrInvalidRetryConfig is returned by RetryConfig.Validate.
	ErrInvalidRetryConfig = errors.New("etherscan: invalid retry configuration")
)

// FetchError is a single failed attempt to fetch a transaction list.
//
// Transport failures, non-2xx statuses, undecodable bodies and API error
// envelopes are all FetchErrors and all retryable.
type FetchError struct {
	// Address is the queried account.
	Address string

	// StatusCode is the HTTP status, zero if no response was received.
	StatusCode int

	// Reason describes the failure class, e.g. "transport", "status",
	// "decode" or "api".
	Reason string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d): %v", e.Address, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Address, e.Reason, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is returned when every allowed attempt failed.
type RetriesExhaustedError struct {
	// Address is the queried account.
	Address string

	// Attempts is the number of attempts made.
	Attempts int

	// Last is the error of the final attempt.
	Last error
}

// Error implements error.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.Address, e.Attempts, e.Last)
}

// Unwrap returns the last attempt's error.
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// IsRetryable reports whether err should trigger another attempt.
//
// Context cancellation and an open circuit are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var fe *FetchError
	return errors.As(err, &fe)
}
