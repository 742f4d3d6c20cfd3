// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package txgraph

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting node and edge insertions.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Edge is one transaction between two accounts.
type Edge struct {
	// From is the normalized sender address.
	From Address

	// To is the normalized recipient address.
	To Address

	// Tx is the transaction payload.
	Tx Transaction
}

// Node is an account with its incident edges in insertion order.
type Node struct {
	// Address is the node label.
	Address Address

	// Index is the node's insertion position. Persisted edges refer to it.
	Index int

	// Outgoing contains edges where this node is the sender.
	Outgoing []*Edge

	// Incoming contains edges where this node is the recipient.
	Incoming []*Edge
}

// GraphOptions configures Graph limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	MaxEdges int
}

// DefaultGraphOptions returns the default limits.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// pairKey identifies an ordered (from, to) address pair.
type pairKey struct {
	from Address
	to   Address
}

// Graph is a directed multigraph of accounts and transactions.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. After Freeze()
//	is called, it can be read from multiple goroutines.
//
// Lifecycle:
//
//  1. Create with NewGraph()
//  2. Build with EnsureNode() and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Read with Nodes(), Edges(), HasDirectedEdge(), Subgraph()
type Graph struct {
	nodes map[Address]*Node

	// order holds nodes by insertion index.
	order []*Node

	edges []*Edge

	// hashes maps normalized transaction hashes to their edge.
	hashes map[string]*Edge

	// directed counts edges per ordered address pair.
	directed map[pairKey]int

	state   GraphState
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was
	// called. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates an empty graph in the Building state.
//
//	g := txgraph.NewGraph(txgraph.WithMaxEdges(100))
func NewGraph(opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		nodes:    make(map[Address]*Node),
		order:    make([]*Node, 0),
		edges:    make([]*Edge, 0),
		hashes:   make(map[string]*Edge),
		directed: make(map[pairKey]int),
		state:    GraphStateBuilding,
		options:  options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode. Irreversible.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// MaxEdges returns the configured edge capacity.
func (g *Graph) MaxEdges() int {
	return g.options.MaxEdges
}

// AddNode adds an account as a node.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Address is empty
//	ErrDuplicateNode - Node with the same address already exists
//	ErrMaxNodesExceeded - Graph is at node capacity
func (g *Graph) AddNode(addr Address) (*Node, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}
	if addr == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidNode)
	}
	if _, exists := g.nodes[addr]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, addr)
	}
	if len(g.order) >= g.options.MaxNodes {
		return nil, ErrMaxNodesExceeded
	}

	node := &Node{
		Address:  addr,
		Index:    len(g.order),
		Outgoing: make([]*Edge, 0),
		Incoming: make([]*Edge, 0),
	}
	g.nodes[addr] = node
	g.order = append(g.order, node)
	return node, nil
}

// EnsureNode returns the node for addr, creating it if needed.
// The boolean reports whether the node was created by this call.
func (g *Graph) EnsureNode(addr Address) (*Node, bool, error) {
	if node, ok := g.nodes[addr]; ok {
		return node, false, nil
	}
	node, err := g.AddNode(addr)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

// GetNode retrieves a node by address.
func (g *Graph) GetNode(addr Address) (*Node, bool) {
	node, ok := g.nodes[addr]
	return node, ok
}

// HasTransaction reports whether a transaction with this hash is present.
func (g *Graph) HasTransaction(hash string) bool {
	_, ok := g.hashes[Transaction{Hash: hash}.HashKey()]
	return ok
}

// AddEdge adds a transaction as an edge from its sender to its recipient.
//
// Both endpoint nodes must already exist. Parallel edges between the same
// accounts are allowed; repeated hashes are not.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidEdge - Transaction has no hash
//	ErrDuplicateEdge - Hash already present
//	ErrMaxEdgesExceeded - Graph is at edge capacity
//	ErrNodeNotFound - Sender or recipient has no node
func (g *Graph) AddEdge(tx Transaction) (*Edge, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}

	key := tx.HashKey()
	if key == "" {
		return nil, fmt.Errorf("%w: transaction has no hash", ErrInvalidEdge)
	}
	if _, exists := g.hashes[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, tx.Hash)
	}
	if len(g.edges) >= g.options.MaxEdges {
		return nil, ErrMaxEdgesExceeded
	}

	from, to := tx.FromAddress(), tx.ToAddress()
	fromNode, ok := g.nodes[from]
	if !ok {
		return nil, fmt.Errorf("%w: source %q", ErrNodeNotFound, from)
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return nil, fmt.Errorf("%w: target %q", ErrNodeNotFound, to)
	}

	edge := &Edge{From: from, To: to, Tx: tx}
	g.edges = append(g.edges, edge)
	g.hashes[key] = edge
	g.directed[pairKey{from: from, to: to}]++
	fromNode.Outgoing = append(fromNode.Outgoing, edge)
	toNode.Incoming = append(toNode.Incoming, edge)
	return edge, nil
}

// AddTransaction adds tx as an edge, creating missing endpoint nodes.
//
// Either the edge and its endpoints are all inserted or the graph is left
// unchanged.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidEdge - Transaction has no hash or lacks an endpoint
//	ErrDuplicateEdge - Hash already present
//	ErrMaxEdgesExceeded - Graph is at edge capacity
//	ErrMaxNodesExceeded - The new endpoints do not fit
func (g *Graph) AddTransaction(tx Transaction) (*Edge, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}

	key := tx.HashKey()
	if key == "" {
		return nil, fmt.Errorf("%w: transaction has no hash", ErrInvalidEdge)
	}
	from, to := tx.FromAddress(), tx.ToAddress()
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: %s: missing endpoint", ErrInvalidEdge, tx.Hash)
	}
	if _, exists := g.hashes[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, tx.Hash)
	}
	if len(g.edges) >= g.options.MaxEdges {
		return nil, ErrMaxEdgesExceeded
	}

	missing := 0
	if _, ok := g.nodes[from]; !ok {
		missing++
	}
	if _, ok := g.nodes[to]; !ok && to != from {
		missing++
	}
	if len(g.order)+missing > g.options.MaxNodes {
		return nil, ErrMaxNodesExceeded
	}

	if _, _, err := g.EnsureNode(from); err != nil {
		return nil, err
	}
	if _, _, err := g.EnsureNode(to); err != nil {
		return nil, err
	}
	return g.AddEdge(tx)
}

// Nodes returns all nodes in insertion order.
// Callers should NOT modify the returned slice.
func (g *Graph) Nodes() []*Node {
	return g.order
}

// Addresses returns all node labels in insertion order.
func (g *Graph) Addresses() []Address {
	out := make([]Address, len(g.order))
	for i, n := range g.order {
		out[i] = n.Address
	}
	return out
}

// Edges returns all edges in insertion order.
// Callers should NOT modify the returned slice.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// HasDirectedEdge reports whether at least one edge from -> to exists.
func (g *Graph) HasDirectedEdge(from, to Address) bool {
	return g.directed[pairKey{from: from, to: to}] > 0
}

// Subgraph returns a new frozen graph holding every node of g, in the same
// order, and exactly the edges for which keep returns true.
//
// The result shares no mutable state with g. Edge payloads are copied.
func (g *Graph) Subgraph(keep func(*Edge) bool) *Graph {
	sub := NewGraph(WithMaxNodes(g.options.MaxNodes), WithMaxEdges(g.options.MaxEdges))
	for _, n := range g.order {
		// Node set and order are copied as-is; errors are impossible here.
		_, _ = sub.AddNode(n.Address)
	}
	for _, e := range g.edges {
		if !keep(e) {
			continue
		}
		_, _ = sub.AddEdge(e.Tx)
	}
	sub.Freeze()
	return sub
}

// GraphStats contains statistics about the graph.
type GraphStats struct {
	NodeCount    int        `json:"node_count"`
	EdgeCount    int        `json:"edge_count"`
	SelfLoops    int        `json:"self_loops"`
	MaxEdges     int        `json:"max_edges"`
	State        GraphState `json:"-"`
	BuiltAtMilli int64      `json:"built_at_milli"`
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() GraphStats {
	selfLoops := 0
	for _, e := range g.edges {
		if e.From == e.To {
			selfLoops++
		}
	}
	return GraphStats{
		NodeCount:    len(g.order),
		EdgeCount:    len(g.edges),
		SelfLoops:    selfLoops,
		MaxEdges:     g.options.MaxEdges,
		State:        g.state,
		BuiltAtMilli: g.BuiltAtMilli,
	}
}
