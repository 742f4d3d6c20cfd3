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
	"fmt"

	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
)

// FilterByUSD returns a frozen graph with every node of g and exactly the
// edges whose USD value lies in [lower, upper].
//
// The first valuation failure aborts the filter.
func FilterByUSD(g *txgraph.Graph, v *Valuer, lower, upper decimal.Decimal) (*txgraph.Graph, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if lower.GreaterThan(upper) {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, lower, upper)
	}

	keep := make(map[*txgraph.Edge]bool, g.EdgeCount())
	for _, e := range g.Edges() {
		ev, err := v.Edge(e)
		if err != nil {
			return nil, fmt.Errorf("filter by usd: %w", err)
		}
		keep[e] = ev.USD.GreaterThanOrEqual(lower) && ev.USD.LessThanOrEqual(upper)
	}
	return g.Subgraph(func(e *txgraph.Edge) bool { return keep[e] }), nil
}

// FilterTwoWay returns a frozen graph with every node of g and exactly the
// edges A -> B for which g also holds an edge B -> A.
//
// A self-loop is its own reverse and is always kept.
func FilterTwoWay(g *txgraph.Graph) (*txgraph.Graph, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	return g.Subgraph(func(e *txgraph.Edge) bool {
		return g.HasDirectedEdge(e.To, e.From)
	}), nil
}
