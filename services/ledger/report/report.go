// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report assembles the four-section USD report over a crawled graph
// and renders it as text, JSON, or per-pair logs.
//
// Sections:
//
//	full                    every edge
//	price_filtered          edges valued inside [lower, upper]
//	two_way                 edges whose reverse direction exists
//	two_way_price_filtered  two-way edges of the price-filtered graph
//
// Displayed figures are rounded up to whole dollars. JSON carries both the
// exact decimal and the rounded value.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
)

// Section names.
const (
	SectionFull                = "full"
	SectionPriceFiltered       = "price_filtered"
	SectionTwoWay              = "two_way"
	SectionTwoWayPriceFiltered = "two_way_price_filtered"
)

// Default price filter bounds in USD.
var (
	DefaultLower = decimal.NewFromInt(10)
	DefaultUpper = decimal.NewFromInt(1000)
)

// Options configures Build.
type Options struct {
	Lower decimal.Decimal
	Upper decimal.Decimal

	// Workers bounds the pair valuation pool. Zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the [10, 1000] USD filter.
func DefaultOptions() Options {
	return Options{Lower: DefaultLower, Upper: DefaultUpper}
}

// Figure is a USD amount with its display rounding.
type Figure struct {
	Exact   decimal.Decimal `json:"exact"`
	Rounded int64           `json:"rounded"`
}

func newFigure(d decimal.Decimal) Figure {
	return Figure{Exact: d, Rounded: d.Ceil().IntPart()}
}

// Section is one block of the report.
type Section struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Edges int    `json:"edges"`
	Nodes int    `json:"nodes"`

	Total Figure `json:"total"`

	// Mean is nil when the section has no edges.
	Mean *Figure `json:"mean,omitempty"`

	// Flow and Pairs are set for two-way sections only.
	Flow  *Figure          `json:"flow,omitempty"`
	Pairs []analytics.Pair `json:"pairs,omitempty"`
}

// Report is the full four-section report.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Lower       decimal.Decimal `json:"lower"`
	Upper       decimal.Decimal `json:"upper"`
	Sections    []Section       `json:"sections"`
}

// Section returns the section with the given name.
func (r *Report) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Build values g against prices and assembles all four sections.
//
// Any valuation failure aborts the report.
func Build(ctx context.Context, g *txgraph.Graph, prices analytics.PriceSource, opts Options) (r *Report, err error) {
	start := time.Now()
	defer func() { recordBuild(ctx, time.Since(start), r, err) }()

	if g == nil {
		return nil, analytics.ErrNilGraph
	}
	v := analytics.NewValuer(prices)
	rangeLabel := fmt.Sprintf("between $%s and $%s", opts.Lower, opts.Upper)

	filtered, err := analytics.FilterByUSD(g, v, opts.Lower, opts.Upper)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	twoWay, err := analytics.FilterTwoWay(g)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	twoWayFiltered, err := analytics.FilterTwoWay(filtered)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	r = &Report{
		GeneratedAt: time.Now().UTC(),
		Lower:       opts.Lower,
		Upper:       opts.Upper,
	}
	plans := []struct {
		name, title string
		graph       *txgraph.Graph
		pairs       bool
	}{
		{SectionFull, "All transactions", g, false},
		{SectionPriceFiltered, "Transactions " + rangeLabel, filtered, false},
		{SectionTwoWay, "Two-way transactions", twoWay, true},
		{SectionTwoWayPriceFiltered, "Two-way transactions " + rangeLabel, twoWayFiltered, true},
	}
	for _, p := range plans {
		s, err := buildSection(ctx, p.name, p.title, p.graph, v, p.pairs, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("build report: %s: %w", p.name, err)
		}
		r.Sections = append(r.Sections, s)
	}
	return r, nil
}

func buildSection(ctx context.Context, name, title string, g *txgraph.Graph, v *analytics.Valuer, pairs bool, workers int) (Section, error) {
	s := Section{
		Name:  name,
		Title: title,
		Edges: g.EdgeCount(),
		Nodes: g.NodeCount(),
	}

	total, err := analytics.TotalVolume(g, v)
	if err != nil {
		return Section{}, err
	}
	s.Total = newFigure(total)

	mean, err := analytics.MeanVolume(g, v)
	switch {
	case errors.Is(err, analytics.ErrEmptyGraph):
		// no mean for an empty section
	case err != nil:
		return Section{}, err
	default:
		f := newFigure(mean)
		s.Mean = &f
	}

	if pairs {
		flow, err := analytics.PairwiseFlow(ctx, g, v, analytics.WithWorkers(workers))
		if err != nil {
			return Section{}, err
		}
		f := newFigure(flow.Flow)
		s.Flow = &f
		s.Pairs = flow.Pairs
	}
	return s, nil
}
