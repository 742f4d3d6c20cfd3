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
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

// snapshot is the persisted form of a graph.
//
// Each edge is a three element array [sourceIndex, targetIndex, transaction].
type snapshot struct {
	Nodes []Address `json:"nodes"`
	Edges [][]any   `json:"edges"`
}

// Marshal encodes g in the persisted nodes/edges layout.
func Marshal(g *Graph) ([]byte, error) {
	snap := snapshot{
		Nodes: g.Addresses(),
		Edges: make([][]any, 0, len(g.edges)),
	}
	for _, e := range g.edges {
		src := g.nodes[e.From].Index
		dst := g.nodes[e.To].Index
		snap.Edges = append(snap.Edges, []any{src, dst, e.Tx})
	}
	data, err := sonnet.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a graph from the persisted layout.
//
// The returned graph is in the Building state so that a crawl can continue
// from it. Node order and edge order are preserved. An empty node label
// stands for the missing recipient of a contract creation; that node and
// every edge touching it are dropped on load.
func Unmarshal(data []byte, opts ...GraphOption) (*Graph, error) {
	var raw struct {
		Nodes []string `json:"nodes"`
		Edges [][]any  `json:"edges"`
	}
	if err := sonnet.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	g := NewGraph(opts...)
	labels := make([]Address, len(raw.Nodes))
	for i, label := range raw.Nodes {
		addr := NormalizeAddress(label)
		labels[i] = addr
		if addr == "" {
			continue
		}
		if _, err := g.AddNode(addr); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}

	for i, tuple := range raw.Edges {
		if len(tuple) != 3 {
			return nil, fmt.Errorf("%w: edge %d has %d elements, want 3", ErrMalformedSnapshot, i, len(tuple))
		}
		src, err := nodeIndex(tuple[0], len(labels))
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d source: %v", ErrMalformedSnapshot, i, err)
		}
		dst, err := nodeIndex(tuple[1], len(labels))
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d target: %v", ErrMalformedSnapshot, i, err)
		}

		payload, err := sonnet.Marshal(tuple[2])
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d payload: %v", ErrMalformedSnapshot, i, err)
		}
		var tx Transaction
		if err := sonnet.Unmarshal(payload, &tx); err != nil {
			return nil, fmt.Errorf("%w: edge %d payload: %v", ErrMalformedSnapshot, i, err)
		}

		srcAddr, dstAddr := labels[src], labels[dst]
		if srcAddr == "" || dstAddr == "" || tx.IsContractCreation() {
			continue
		}
		// The endpoint indices are authoritative for the edge direction.
		if tx.FromAddress() != srcAddr || tx.ToAddress() != dstAddr {
			return nil, fmt.Errorf("%w: edge %d endpoints %s -> %s do not match transaction %s",
				ErrMalformedSnapshot, i, srcAddr, dstAddr, tx.Hash)
		}
		if _, err := g.AddEdge(tx); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return g, nil
}

// Encode writes g to w.
func Encode(w io.Writer, g *Graph) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

// Decode reads a graph from r.
func Decode(r io.Reader, opts ...GraphOption) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Unmarshal(data, opts...)
}

// Save writes g to path, creating parent directories as needed.
//
// The file is written to a temporary sibling and renamed into place so a
// crash never leaves a truncated graph behind.
func Save(path string, g *Graph) error {
	data, err := Marshal(g)
	if err != nil {
		return fmt.Errorf("save graph %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("save graph %s: create directory: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	return nil
}

// Load reads a graph previously written by Save.
func Load(path string, opts ...GraphOption) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	g, err := Unmarshal(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	return g, nil
}

// nodeIndex converts a decoded JSON number into a node index.
func nodeIndex(v any, nodeCount int) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("index %v is not a number", v)
	}
	if f != math.Trunc(f) || f < 0 || int(f) >= nodeCount {
		return 0, fmt.Errorf("index %v out of range [0, %d)", v, nodeCount)
	}
	return int(f), nil
}
