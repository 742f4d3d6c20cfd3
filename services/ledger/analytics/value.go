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

// PriceSource resolves the USD price of one ether at a unix timestamp.
//
// *prices.Index implements PriceSource.
type PriceSource interface {
	PriceAt(ts int64) (decimal.Decimal, error)
}

// EdgeValue is one priced transaction.
type EdgeValue struct {
	Hash      string          `json:"hash"`
	From      txgraph.Address `json:"from"`
	To        txgraph.Address `json:"to"`
	Timestamp int64           `json:"timestamp"`
	USD       decimal.Decimal `json:"usd"`
}

// Valuer prices transactions in USD.
type Valuer struct {
	prices PriceSource
}

// NewValuer creates a Valuer backed by prices.
func NewValuer(prices PriceSource) *Valuer {
	return &Valuer{prices: prices}
}

// USD returns the USD value of tx.
//
// Errors wrap txgraph.ErrMalformedTransaction for unparsable value or
// timestamp fields, and *prices.LookupError when no bucket prices the
// timestamp.
func (v *Valuer) USD(tx txgraph.Transaction) (decimal.Decimal, error) {
	ev, err := v.Edge(&txgraph.Edge{From: tx.FromAddress(), To: tx.ToAddress(), Tx: tx})
	if err != nil {
		return decimal.Zero, err
	}
	return ev.USD, nil
}

// Edge prices one graph edge.
func (v *Valuer) Edge(e *txgraph.Edge) (EdgeValue, error) {
	ts, err := e.Tx.Unix()
	if err != nil {
		return EdgeValue{}, err
	}
	ether, err := e.Tx.Ether()
	if err != nil {
		return EdgeValue{}, err
	}
	price, err := v.prices.PriceAt(ts)
	if err != nil {
		return EdgeValue{}, fmt.Errorf("value %s: %w", e.Tx.Hash, err)
	}
	return EdgeValue{
		Hash:      e.Tx.Hash,
		From:      e.From,
		To:        e.To,
		Timestamp: ts,
		USD:       ether.Mul(price),
	}, nil
}

// Edges prices every edge of g in insertion order.
func (v *Valuer) Edges(g *txgraph.Graph) ([]EdgeValue, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	out := make([]EdgeValue, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		ev, err := v.Edge(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
