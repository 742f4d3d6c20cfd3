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
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	store "github.com/AleutianAI/ethgraph/services/ledger/storage/badger"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/dgraph-io/badger/v4"
	"github.com/sugawarayuuta/sonnet"
)

const sessionPrefix = "session/"

// SessionSummary describes a stored checkpoint.
type SessionSummary struct {
	ID        string    `json:"id"`
	Seed      string    `json:"seed"`
	Strategy  Strategy  `json:"strategy"`
	Status    string    `json:"status"`
	Edges     int       `json:"edges"`
	Nodes     int       `json:"nodes"`
	Queried   int       `json:"queried"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// sessionRecord is the stored form of everything in a Session but the graph.
type sessionRecord struct {
	ID         string            `json:"id"`
	Seed       string            `json:"seed"`
	Strategy   Strategy          `json:"strategy"`
	MaxEdges   int               `json:"max_edges"`
	MaxDepth   int               `json:"max_depth"`
	Status     string            `json:"status"`
	CreatedAt  int64             `json:"created_at_milli"`
	UpdatedAt  int64             `json:"updated_at_milli"`
	Edges      int               `json:"edges"`
	Nodes      int               `json:"nodes"`
	Relevance  []ScoredAddress   `json:"relevance"`
	Trajectory []txgraph.Address `json:"trajectory"`
	Depth      []frontierEntry   `json:"depth,omitempty"`
	Queue      []frontierEntry   `json:"queue,omitempty"`
	Current    *frontierEntry    `json:"current,omitempty"`
}

// CheckpointStore keeps crawl sessions in BadgerDB.
//
// Each session is stored under two keys: session/<id>/meta holds the
// crawl state and session/<id>/graph the graph snapshot.
type CheckpointStore struct {
	db *store.DB
}

// NewCheckpointStore wraps an open database.
func NewCheckpointStore(db *store.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func metaKey(id string) []byte  { return []byte(sessionPrefix + id + "/meta") }
func graphKey(id string) []byte { return []byte(sessionPrefix + id + "/graph") }

// SaveSession writes s atomically, replacing any earlier checkpoint.
func (c *CheckpointStore) SaveSession(ctx context.Context, s *Session) error {
	graph, err := txgraph.Marshal(s.Graph)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.ID, err)
	}
	meta, err := sonnet.Marshal(recordFromSession(s))
	if err != nil {
		return fmt.Errorf("checkpoint %s: encode: %w", s.ID, err)
	}

	err = c.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(graphKey(s.ID), graph); err != nil {
			return err
		}
		return txn.Set(metaKey(s.ID), meta)
	})
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", s.ID, err)
	}
	return nil
}

// LoadSession restores a session.
//
// Errors:
//
//	ErrSessionNotFound - no checkpoint with this ID
//	ErrCorruptCheckpoint - stored data cannot be decoded
func (c *CheckpointStore) LoadSession(ctx context.Context, id string) (*Session, error) {
	meta, err := c.db.Get(ctx, metaKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	graphData, err := c.db.Get(ctx, graphKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: graph: %v", ErrCorruptCheckpoint, id, err)
	}

	var rec sessionRecord
	if err := sonnet.Unmarshal(meta, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, id, err)
	}
	g, err := txgraph.Unmarshal(graphData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, id, err)
	}
	return sessionFromRecord(rec, g)
}

// ListSessions returns stored sessions, most recently updated first.
func (c *CheckpointStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var out []SessionSummary
	err := c.db.ScanPrefix(ctx, []byte(sessionPrefix), func(key, value []byte) error {
		if !strings.HasSuffix(string(key), "/meta") {
			return nil
		}
		var rec sessionRecord
		if err := sonnet.Unmarshal(append([]byte(nil), value...), &rec); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, key, err)
		}
		out = append(out, SessionSummary{
			ID:        rec.ID,
			Seed:      rec.Seed,
			Strategy:  rec.Strategy,
			Status:    rec.Status,
			Edges:     rec.Edges,
			Nodes:     rec.Nodes,
			Queried:   len(rec.Trajectory),
			CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
			UpdatedAt: time.UnixMilli(rec.UpdatedAt).UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteSession removes a checkpoint. Deleting a missing session is not an
// error.
func (c *CheckpointStore) DeleteSession(ctx context.Context, id string) error {
	if err := c.db.DeletePrefix(ctx, []byte(sessionPrefix+id+"/")); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func recordFromSession(s *Session) sessionRecord {
	rec := sessionRecord{
		ID:         s.ID,
		Seed:       s.Seed.String(),
		Strategy:   s.Strategy,
		MaxEdges:   s.MaxEdges,
		MaxDepth:   s.MaxDepth,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt.UnixMilli(),
		UpdatedAt:  s.UpdatedAt.UnixMilli(),
		Edges:      s.Graph.EdgeCount(),
		Nodes:      s.Graph.NodeCount(),
		Relevance:  s.RelevanceOrder(),
		Trajectory: s.Trajectory(),
		Queue:      append([]frontierEntry(nil), s.queue...),
		Current:    s.current,
	}
	for addr, d := range s.depth {
		rec.Depth = append(rec.Depth, frontierEntry{Address: addr, Depth: d})
	}
	sort.Slice(rec.Depth, func(i, j int) bool { return rec.Depth[i].Address < rec.Depth[j].Address })
	return rec
}

func sessionFromRecord(rec sessionRecord, g *txgraph.Graph) (*Session, error) {
	strategy, err := ParseStrategy(string(rec.Strategy))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, rec.ID, err)
	}
	s := &Session{
		ID:        rec.ID,
		Seed:      txgraph.NormalizeAddress(rec.Seed),
		Strategy:  strategy,
		MaxEdges:  rec.MaxEdges,
		MaxDepth:  rec.MaxDepth,
		Graph:     g,
		Status:    rec.Status,
		CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(rec.UpdatedAt).UTC(),
		relevance: make(map[txgraph.Address]int, len(rec.Relevance)),
		visited:   make(map[txgraph.Address]struct{}, len(rec.Trajectory)),
		depth:     make(map[txgraph.Address]int, len(rec.Depth)),
		queue:     rec.Queue,
		current:   rec.Current,
	}
	for _, sa := range rec.Relevance {
		s.bump(sa.Address, sa.Score)
	}
	for _, a := range rec.Trajectory {
		s.visited[a] = struct{}{}
		s.trajectory = append(s.trajectory, a)
	}
	for _, e := range rec.Depth {
		s.depth[e.Address] = e.Depth
	}
	return s, nil
}
