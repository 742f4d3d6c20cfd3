// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package crawler discovers a transaction graph around a seed address.
//
// A crawl is owned by a Session: the graph built so far, a relevance score
// per address, and the trajectory of addresses already queried. The Crawler
// repeatedly picks the next address from the session, fetches its
// transactions from a Source and folds them into the session until the edge
// budget is reached, the frontier is exhausted, the context is cancelled or
// the source fails fatally.
//
// Two strategies are available:
//
//   - relevance (default): greedy best-first. The unvisited address with
//     the highest relevance is expanded next; ties go to the address seen
//     first. Every accepted transaction adds 1 to both endpoints.
//   - depth: breadth-first from the seed, expanding only addresses first
//     discovered less than MaxDepth hops away.
//
// Both strategies share the same rejection rules: contract creations,
// failed transactions, already-known hashes and transactions arriving after
// the budget is spent leave the session unchanged.
package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrInvalidConfig is returned for unusable session configuration.
	ErrInvalidConfig = errors.New("invalid crawl configuration")

	// ErrSessionNotFound is returned when no checkpoint exists for an ID.
	ErrSessionNotFound = errors.New("crawl session not found")

	// ErrCorruptCheckpoint is returned when a stored session cannot be decoded.
	ErrCorruptCheckpoint = errors.New("corrupt crawl checkpoint")
)

// Strategy selects the traversal order.
type Strategy string

const (
	// StrategyRelevance expands the highest-relevance unvisited address.
	StrategyRelevance Strategy = "relevance"

	// StrategyDepth expands breadth-first up to a hop limit.
	StrategyDepth Strategy = "depth"
)

// ParseStrategy validates a strategy name. Empty means relevance.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRelevance:
		return StrategyRelevance, nil
	case StrategyDepth:
		return StrategyDepth, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
}

// RejectReason explains why a transaction was not added.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectContractCreation RejectReason = "contract_creation"
	RejectFailed           RejectReason = "failed"
	RejectDuplicate        RejectReason = "duplicate"
	RejectBudget           RejectReason = "budget"
	RejectMalformed        RejectReason = "malformed"
)

// Termination describes why a crawl stopped.
type Termination string

const (
	TerminationBudget    Termination = "budget_reached"
	TerminationExhausted Termination = "frontier_exhausted"
	TerminationCancelled Termination = "cancelled"
	TerminationFailed    Termination = "failed"
)
