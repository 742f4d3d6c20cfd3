// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package txgraph provides the directed transaction multigraph.
//
// Nodes are account addresses and edges are value transfers between them.
// Several transfers between the same two accounts are kept as parallel
// edges. A transaction hash is inserted at most once per graph.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access while crawling (EnsureNode, AddEdge calls)
//   - Read-only access after Freeze() is called
//
// Filtered graphs produced by Subgraph are new frozen instances that share
// no mutable state with their source.
//
// # Persistence
//
// Save and Load use the on-disk layout
//
//	{"nodes": ["0xabc...", ...], "edges": [[0, 1, {...transaction...}], ...]}
//
// where edge endpoints are indices into the node list.
package txgraph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding an address that already has a node.
	ErrDuplicateNode = errors.New("duplicate node address")

	// ErrDuplicateEdge is returned when adding a transaction whose hash is
	// already present in the graph.
	ErrDuplicateEdge = errors.New("duplicate transaction hash")

	// ErrInvalidNode is returned for an empty address.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned for a transaction without a hash.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrMaxNodesExceeded is returned when the graph is at node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph is at edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrMalformedTransaction is returned when a numeric transaction field
	// (value or timestamp) cannot be parsed.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrMalformedSnapshot is returned when a persisted graph file does not
	// follow the nodes/edges layout.
	ErrMalformedSnapshot = errors.New("malformed graph snapshot")
)
