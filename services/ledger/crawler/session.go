// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawler

import (
	"fmt"
	"time"

	"github.com/AleutianAI/ethgraph/pkg/validation"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/google/uuid"
)

// Default crawl parameters.
const (
	DefaultSeed     = "0x60D170c2b604a4B613b43805aE4657476DCA9E38"
	DefaultMaxEdges = 100
	DefaultMaxDepth = 4
)

// StatusRunning marks a session whose crawl has not terminated.
const StatusRunning = "running"

// Config describes a crawl.
type Config struct {
	// Seed is the starting address.
	Seed string `yaml:"seed" validate:"required,eth_addr"`

	// MaxEdges is the global edge budget, counting edges already in a
	// continued graph.
	MaxEdges int `yaml:"max_edges" validate:"gt=0"`

	// MaxDepth bounds the depth strategy. Ignored by relevance.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`

	// Strategy selects the traversal order.
	Strategy Strategy `yaml:"strategy" validate:"omitempty,oneof=relevance depth"`
}

// DefaultConfig returns the default crawl.
func DefaultConfig() Config {
	return Config{
		Seed:     DefaultSeed,
		MaxEdges: DefaultMaxEdges,
		MaxDepth: DefaultMaxDepth,
		Strategy: StrategyRelevance,
	}
}

// ScoredAddress is an address with its relevance.
type ScoredAddress struct {
	Address txgraph.Address `json:"address"`
	Score   int             `json:"score"`
}

type frontierEntry struct {
	Address txgraph.Address `json:"address"`
	Depth   int             `json:"depth"`
}

// Session is the complete state of one crawl.
//
// Thread Safety:
//
//	Session is NOT safe for concurrent use. The Crawler mutates it from a
//	single goroutine; read it only after Run returns.
type Session struct {
	// ID identifies the session in checkpoints and on the edge stream.
	ID string

	Seed     txgraph.Address
	Strategy Strategy
	MaxEdges int
	MaxDepth int

	// Graph is the graph built so far. It stays in the Building state.
	Graph *txgraph.Graph

	// Status is StatusRunning or the Termination of the last run.
	Status string

	CreatedAt time.Time
	UpdatedAt time.Time

	relevance map[txgraph.Address]int

	// order holds relevance keys by first appearance; it breaks ties.
	order []txgraph.Address

	visited    map[txgraph.Address]struct{}
	trajectory []txgraph.Address

	// Depth strategy state.
	depth   map[txgraph.Address]int
	queue   []frontierEntry
	current *frontierEntry
}

// NewSession starts an empty crawl at cfg.Seed. The seed is the only
// address in the relevance counter, with score 1.
func NewSession(cfg Config) (*Session, error) {
	s, err := newSession(cfg, txgraph.NewGraph())
	if err != nil {
		return nil, err
	}
	s.bump(s.Seed, 1)
	if s.Strategy == StrategyDepth {
		s.depth[s.Seed] = 0
		s.queue = append(s.queue, frontierEntry{Address: s.Seed, Depth: 0})
	}
	return s, nil
}

// ContinueSession resumes crawling on top of a previously saved graph.
//
// Known nodes and hashes are kept, so already stored transactions are
// rejected as duplicates. Relevance is rebuilt from the existing edges on
// top of the seed's initial score. The trajectory starts empty, so known
// addresses may be queried again for newer transactions. For the depth
// strategy the frontier is the breadth-first order of the existing graph
// from the seed.
func ContinueSession(cfg Config, g *txgraph.Graph) (*Session, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidConfig)
	}
	if g.IsFrozen() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, txgraph.ErrGraphFrozen)
	}
	s, err := newSession(cfg, g)
	if err != nil {
		return nil, err
	}
	s.bump(s.Seed, 1)
	for _, e := range g.Edges() {
		s.bump(e.From, 1)
		s.bump(e.To, 1)
	}
	if s.Strategy == StrategyDepth {
		s.seedDepthFrontier()
	}
	return s, nil
}

func newSession(cfg Config, g *txgraph.Graph) (*Session, error) {
	seed, err := validation.SanitizeAddress(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %v", ErrInvalidConfig, err)
	}
	if cfg.MaxEdges <= 0 {
		return nil, fmt.Errorf("%w: max edges must be positive, got %d", ErrInvalidConfig, cfg.MaxEdges)
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Seed:      txgraph.Address(seed),
		Strategy:  strategy,
		MaxEdges:  cfg.MaxEdges,
		MaxDepth:  maxDepth,
		Graph:     g,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
		relevance: make(map[txgraph.Address]int),
		visited:   make(map[txgraph.Address]struct{}),
		depth:     make(map[txgraph.Address]int),
	}, nil
}

// seedDepthFrontier walks the existing graph breadth-first from the seed,
// ignoring edge direction, and queues every address closer than MaxDepth.
func (s *Session) seedDepthFrontier() {
	s.depth[s.Seed] = 0
	s.queue = append(s.queue, frontierEntry{Address: s.Seed, Depth: 0})

	for i := 0; i < len(s.queue); i++ {
		cur := s.queue[i]
		if cur.Depth+1 >= s.MaxDepth {
			continue
		}
		node, ok := s.Graph.GetNode(cur.Address)
		if !ok {
			continue
		}
		visit := func(addr txgraph.Address) {
			if _, seen := s.depth[addr]; seen {
				return
			}
			s.depth[addr] = cur.Depth + 1
			s.queue = append(s.queue, frontierEntry{Address: addr, Depth: cur.Depth + 1})
		}
		for _, e := range node.Outgoing {
			visit(e.To)
		}
		for _, e := range node.Incoming {
			visit(e.From)
		}
	}
}

// bump adds delta to addr's relevance, registering addr on first sight.
func (s *Session) bump(addr txgraph.Address, delta int) {
	if _, ok := s.relevance[addr]; !ok {
		s.order = append(s.order, addr)
	}
	s.relevance[addr] += delta
}

// Relevance returns addr's score, zero if unknown.
func (s *Session) Relevance(addr txgraph.Address) int {
	return s.relevance[addr]
}

// RelevanceOrder returns every scored address in first-seen order.
func (s *Session) RelevanceOrder() []ScoredAddress {
	out := make([]ScoredAddress, len(s.order))
	for i, a := range s.order {
		out[i] = ScoredAddress{Address: a, Score: s.relevance[a]}
	}
	return out
}

// Visited reports whether addr is in the trajectory.
func (s *Session) Visited(addr txgraph.Address) bool {
	_, ok := s.visited[addr]
	return ok
}

// Trajectory returns the queried addresses in query order.
func (s *Session) Trajectory() []txgraph.Address {
	out := make([]txgraph.Address, len(s.trajectory))
	copy(out, s.trajectory)
	return out
}

// BudgetReached reports whether the graph holds MaxEdges edges.
func (s *Session) BudgetReached() bool {
	return s.Graph.EdgeCount() >= s.MaxEdges
}

// FrontierSize returns the number of addresses still eligible for expansion.
func (s *Session) FrontierSize() int {
	n := 0
	if s.Strategy == StrategyDepth {
		for _, e := range s.queue {
			if !s.Visited(e.Address) {
				n++
			}
		}
		return n
	}
	for _, a := range s.order {
		if !s.Visited(a) {
			n++
		}
	}
	return n
}

// Next returns the address to expand next without changing the session.
// The boolean is false when the frontier is exhausted.
func (s *Session) Next() (txgraph.Address, bool) {
	if s.Strategy == StrategyDepth {
		for len(s.queue) > 0 {
			head := s.queue[0]
			if s.Visited(head.Address) {
				s.queue = s.queue[1:]
				continue
			}
			return head.Address, true
		}
		return "", false
	}

	var best txgraph.Address
	bestScore := 0
	found := false
	for _, a := range s.order {
		if s.Visited(a) {
			continue
		}
		// Strictly greater keeps the earliest address on ties.
		if score := s.relevance[a]; !found || score > bestScore {
			best, bestScore, found = a, score, true
		}
	}
	return best, found
}

// begin adds addr to the trajectory before it is fetched.
func (s *Session) begin(addr txgraph.Address) {
	s.visited[addr] = struct{}{}
	s.trajectory = append(s.trajectory, addr)
	s.current = nil
	if s.Strategy == StrategyDepth && len(s.queue) > 0 && s.queue[0].Address == addr {
		head := s.queue[0]
		s.current = &head
		s.queue = s.queue[1:]
	}
}

// rollback undoes begin after a fatal fetch error so a resumed crawl
// queries addr again.
func (s *Session) rollback(addr txgraph.Address) {
	delete(s.visited, addr)
	if n := len(s.trajectory); n > 0 && s.trajectory[n-1] == addr {
		s.trajectory = s.trajectory[:n-1]
	}
	if s.current != nil && s.current.Address == addr {
		s.queue = append([]frontierEntry{*s.current}, s.queue...)
		s.current = nil
	}
}

// Accept folds tx into the session.
//
// A rejected transaction leaves the session unchanged and returns a nil
// edge with the reason. Checks run in order: contract creation, failure
// flag, known hash, budget, malformed fields. A transaction whose value or
// timestamp does not parse is malformed, as is one the graph cannot hold.
func (s *Session) Accept(tx txgraph.Transaction) (*txgraph.Edge, RejectReason) {
	switch {
	case tx.IsContractCreation():
		return nil, RejectContractCreation
	case tx.Failed():
		return nil, RejectFailed
	case s.Graph.HasTransaction(tx.Hash):
		return nil, RejectDuplicate
	case s.BudgetReached():
		return nil, RejectBudget
	case tx.HashKey() == "" || tx.FromAddress() == "" || tx.ToAddress() == "":
		return nil, RejectMalformed
	}
	if _, err := tx.Wei(); err != nil {
		return nil, RejectMalformed
	}
	if _, err := tx.Unix(); err != nil {
		return nil, RejectMalformed
	}

	from, to := tx.FromAddress(), tx.ToAddress()
	edge, err := s.Graph.AddTransaction(tx)
	if err != nil {
		return nil, RejectMalformed
	}

	s.bump(from, 1)
	s.bump(to, 1)
	if s.Strategy == StrategyDepth {
		s.discover(from)
		s.discover(to)
	}
	s.UpdatedAt = time.Now().UTC()
	return edge, RejectNone
}

// discover assigns a depth to an address seen for the first time and queues
// it when it is still within MaxDepth.
func (s *Session) discover(addr txgraph.Address) {
	if _, ok := s.depth[addr]; ok {
		return
	}
	d := 1
	if s.current != nil {
		d = s.current.Depth + 1
	}
	s.depth[addr] = d
	if d < s.MaxDepth {
		s.queue = append(s.queue, frontierEntry{Address: addr, Depth: d})
	}
}
