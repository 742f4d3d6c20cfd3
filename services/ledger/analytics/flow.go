// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"context"
	"fmt"
	"runtime"

	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "ethgraph.analytics"

// Pair is the flow between two accounts.
//
// A is the sender of the first edge seen between the two accounts. For a
// self-loop A and B are equal, every edge is in Forward and Flow is zero.
type Pair struct {
	A txgraph.Address `json:"a"`
	B txgraph.Address `json:"b"`

	// Forward holds A -> B edges, Reverse holds B -> A edges, each in
	// graph insertion order.
	Forward []EdgeValue `json:"forward"`
	Reverse []EdgeValue `json:"reverse"`

	ForwardUSD decimal.Decimal `json:"forward_usd"`
	ReverseUSD decimal.Decimal `json:"reverse_usd"`

	// Volume is ForwardUSD + ReverseUSD.
	Volume decimal.Decimal `json:"volume"`

	// Flow is |ForwardUSD - ReverseUSD|.
	Flow decimal.Decimal `json:"flow"`
}

// SelfLoop reports whether the pair is a single account.
func (p Pair) SelfLoop() bool {
	return p.A == p.B
}

// FlowSummary aggregates Pair figures over a graph.
type FlowSummary struct {
	// Pairs in order of their first edge.
	Pairs []Pair `json:"pairs"`

	Edges  int             `json:"edges"`
	Volume decimal.Decimal `json:"volume"`
	Flow   decimal.Decimal `json:"flow"`
}

type flowOptions struct {
	workers int
}

// FlowOption configures PairwiseFlow.
type FlowOption func(*flowOptions)

// WithWorkers bounds the number of pairs valued concurrently.
// Values below 1 fall back to GOMAXPROCS.
func WithWorkers(n int) FlowOption {
	return func(o *flowOptions) { o.workers = n }
}

// pairGroup is an unordered account pair with its edges.
type pairGroup struct {
	a, b  txgraph.Address
	edges []*txgraph.Edge
}

// PairwiseFlow visits every unordered account pair joined by at least one
// edge of g and reports its volume and net flow.
//
// Pairs are valued on a bounded worker pool; the result order is always the
// order in which each pair's first edge appears in g. The first valuation
// error cancels the remaining work and is returned.
func PairwiseFlow(ctx context.Context, g *txgraph.Graph, v *Valuer, opts ...FlowOption) (*FlowSummary, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	o := flowOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "PairwiseFlow",
		trace.WithAttributes(
			attribute.Int("edges", g.EdgeCount()),
			attribute.Int("workers", o.workers),
		),
	)
	defer span.End()

	groups := groupPairs(g)
	pairs := make([]Pair, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for i, grp := range groups {
		i, grp := i, grp
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			p, err := valuePair(v, grp)
			if err != nil {
				return fmt.Errorf("pair %s/%s: %w", grp.a.Short(), grp.b.Short(), err)
			}
			pairs[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary := &FlowSummary{
		Pairs:  pairs,
		Edges:  g.EdgeCount(),
		Volume: decimal.Zero,
		Flow:   decimal.Zero,
	}
	for _, p := range pairs {
		summary.Volume = summary.Volume.Add(p.Volume)
		summary.Flow = summary.Flow.Add(p.Flow)
	}
	span.SetAttributes(attribute.Int("pairs", len(pairs)))
	telemetry.SetSpanOK(span)
	return summary, nil
}

// groupPairs buckets edges by unordered endpoint pair in first-seen order.
func groupPairs(g *txgraph.Graph) []*pairGroup {
	type key struct{ lo, hi txgraph.Address }

	index := make(map[key]*pairGroup)
	var groups []*pairGroup
	for _, e := range g.Edges() {
		k := key{lo: e.From, hi: e.To}
		if k.hi < k.lo {
			k.lo, k.hi = k.hi, k.lo
		}
		grp, ok := index[k]
		if !ok {
			grp = &pairGroup{a: e.From, b: e.To}
			index[k] = grp
			groups = append(groups, grp)
		}
		grp.edges = append(grp.edges, e)
	}
	return groups
}

func valuePair(v *Valuer, grp *pairGroup) (Pair, error) {
	p := Pair{
		A:          grp.a,
		B:          grp.b,
		Forward:    make([]EdgeValue, 0, len(grp.edges)),
		ForwardUSD: decimal.Zero,
		ReverseUSD: decimal.Zero,
	}
	for _, e := range grp.edges {
		ev, err := v.Edge(e)
		if err != nil {
			return Pair{}, err
		}
		if e.From == grp.a {
			p.Forward = append(p.Forward, ev)
			p.ForwardUSD = p.ForwardUSD.Add(ev.USD)
		} else {
			p.Reverse = append(p.Reverse, ev)
			p.ReverseUSD = p.ReverseUSD.Add(ev.USD)
		}
	}
	p.Volume = p.ForwardUSD.Add(p.ReverseUSD)
	p.Flow = decimal.Zero
	if !p.SelfLoop() {
		p.Flow = p.ForwardUSD.Sub(p.ReverseUSD).Abs()
	}
	return p, nil
}
