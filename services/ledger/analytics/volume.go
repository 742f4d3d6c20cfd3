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
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
)

// TotalVolume returns the summed USD value of all edges of g.
// An empty graph has zero volume.
func TotalVolume(g *txgraph.Graph, v *Valuer) (decimal.Decimal, error) {
	values, err := v.Edges(g)
	if err != nil {
		return decimal.Zero, err
	}
	return sum(values), nil
}

// MeanVolume returns the mean USD value per edge of g.
//
// Returns ErrEmptyGraph when g has no edges.
func MeanVolume(g *txgraph.Graph, v *Valuer) (decimal.Decimal, error) {
	if g == nil {
		return decimal.Zero, ErrNilGraph
	}
	if g.EdgeCount() == 0 {
		return decimal.Zero, ErrEmptyGraph
	}
	total, err := TotalVolume(g, v)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(decimal.NewFromInt(int64(g.EdgeCount()))), nil
}

func sum(values []EdgeValue) decimal.Decimal {
	total := decimal.Zero
	for _, ev := range values {
		total = total.Add(ev.USD)
	}
	return total
}
