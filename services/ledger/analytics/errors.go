// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics computes USD volume and flow figures over transaction
// graphs.
//
// Every figure is derived from a Valuer, which prices an edge as
// wei / 10^18 * PriceAt(timestamp). Filters return new frozen graphs that
// keep the full node set of their input; the input is never modified.
//
// # Figures
//
//   - TotalVolume and MeanVolume over all edges of a graph
//   - FilterByUSD keeps edges whose value lies in an inclusive range
//   - FilterTwoWay keeps edges whose reverse direction also exists
//   - PairwiseFlow groups edges by unordered account pair and reports
//     per-pair volume and net flow
//
// # Thread Safety
//
// All functions only read their inputs. PairwiseFlow values pairs in
// parallel, so the PriceSource must be safe for concurrent use, which
// prices.Index is.
package analytics

import "errors"

var (
	// ErrEmptyGraph is returned for the mean of a graph with no edges.
	ErrEmptyGraph = errors.New("graph has no edges")

	// ErrInvalidRange is returned when a filter's lower bound exceeds its
	// upper bound.
	ErrInvalidRange = errors.New("lower bound exceeds upper bound")

	// ErrNilGraph is returned when a nil graph is passed in.
	ErrNilGraph = errors.New("graph is nil")
)
