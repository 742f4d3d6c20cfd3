// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves reports over HTTP.
//
// Endpoints:
//
//	GET /health              liveness and loaded graph size
//	GET /v1/report           four-section report (?lower=&upper=)
//	GET /v1/report/pairs     per-pair flow of one two-way section (?section=)
//	GET /v1/graph/stats      node and edge counts of the loaded graph
//	GET /metrics             Prometheus metrics
//
// The graph is read from a file and reloaded when the file changes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var graphReloads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ethgraph",
		Subsystem: "api",
		Name:      "graph_reloads_total",
		Help:      "Graph file reloads by result",
	},
	[]string{"result"},
)

// GraphStore holds the frozen graph loaded from a file.
//
// Thread Safety: safe for concurrent use. Readers always see a complete
// graph; a failed reload keeps the previous one.
type GraphStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	graph    *txgraph.Graph
	loadedAt time.Time

	watcher *fsnotify.Watcher
}

// NewGraphStore loads path and returns a store serving it.
func NewGraphStore(path string, logger *slog.Logger) (*GraphStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GraphStore{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Graph returns the current graph and when it was loaded.
func (s *GraphStore) Graph() (*txgraph.Graph, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph, s.loadedAt
}

// Path returns the watched file.
func (s *GraphStore) Path() string {
	return s.path
}

// Reload reads the file again and swaps the graph in on success.
func (s *GraphStore) Reload() error {
	g, err := txgraph.Load(s.path)
	if err != nil {
		graphReloads.WithLabelValues("error").Inc()
		return err
	}
	g.Freeze()

	s.mu.Lock()
	s.graph = g
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	graphReloads.WithLabelValues("ok").Inc()
	s.logger.Info("graph loaded", "path", s.path, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}

// Watch reloads the graph whenever its file is written or replaced, until
// ctx is done or Close is called.
//
// The parent directory is watched because Save replaces the file by rename.
func (s *GraphStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *GraphStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("graph reload failed", "path", s.path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if any.
func (s *GraphStore) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Close()
}
