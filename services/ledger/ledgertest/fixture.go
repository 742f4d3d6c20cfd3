// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledgertest provides shared fixtures for ledger package tests.
//
// The fixture graph has five accounts and eight transfers whose USD values,
// under FixturePrices, are:
//
//	A -> B    127.00   (in [10, 1000])
//	B -> A   1500.00
//	C -> D   1000.00   (in [10, 1000])
//	D -> C   2100.00
//	A -> C   4282.00
//	C -> A   3000.00
//	D -> E   5000.00   (priced past the last bucket)
//	E -> B   4001.50
//
// Totals: 21010.50 overall, 12009 over the six two-way edges with net flow
// 3755, and 1127 over the two edges inside [10, 1000].
package ledgertest

import (
	"fmt"

	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
)

// Fixture accounts.
const (
	AddrA txgraph.Address = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	AddrB txgraph.Address = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	AddrC txgraph.Address = "0xcccccccccccccccccccccccccccccccccccccccc"
	AddrD txgraph.Address = "0xdddddddddddddddddddddddddddddddddddddddd"
	AddrE txgraph.Address = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

// T0 is the start of the first fixture price bucket.
const T0 int64 = 1_700_000_000

// FixturePrices returns two adjacent buckets: 2000 USD from T0 and 2500 USD
// from T0+3600.
func FixturePrices() []prices.Record {
	return []prices.Record{
		{Start: T0, Price: decimal.NewFromInt(2000)},
		{Start: T0 + prices.BucketSeconds, Price: decimal.NewFromInt(2500)},
	}
}

// FixtureIndex returns the index over FixturePrices.
func FixtureIndex() *prices.Index {
	ix, err := prices.NewIndex(FixturePrices())
	if err != nil {
		panic(err)
	}
	return ix
}

type fixtureEdge struct {
	from, to txgraph.Address
	wei      string
	ts       int64
}

var fixtureEdges = []fixtureEdge{
	{AddrA, AddrB, "63500000000000000", T0 + 100},    // 0.0635 ETH @2000
	{AddrB, AddrA, "750000000000000000", T0 + 200},   // 0.75 ETH @2000
	{AddrC, AddrD, "400000000000000000", T0 + 3700},  // 0.4 ETH @2500
	{AddrD, AddrC, "840000000000000000", T0 + 3800},  // 0.84 ETH @2500
	{AddrA, AddrC, "2141000000000000000", T0 + 300},  // 2.141 ETH @2000
	{AddrC, AddrA, "1200000000000000000", T0 + 3900}, // 1.2 ETH @2500
	{AddrD, AddrE, "2000000000000000000", T0 + 9000}, // 2 ETH, after last bucket
	{AddrE, AddrB, "2000750000000000000", T0 + 400},  // 2.00075 ETH @2000
}

// Tx builds a successful transfer.
func Tx(n int, from, to txgraph.Address, wei string, ts int64) txgraph.Transaction {
	return txgraph.Transaction{
		BlockNumber:     fmt.Sprintf("%d", 18_500_000+n),
		TimeStamp:       fmt.Sprintf("%d", ts),
		Hash:            fmt.Sprintf("0x%064x", n),
		From:            string(from),
		To:              string(to),
		Value:           wei,
		Gas:             "21000",
		GasPrice:        "30000000000",
		GasUsed:         "21000",
		IsError:         "0",
		TxReceiptStatus: "1",
		Input:           "0x",
	}
}

// FixtureTransactions returns the eight fixture transfers in insertion order.
func FixtureTransactions() []txgraph.Transaction {
	out := make([]txgraph.Transaction, len(fixtureEdges))
	for i, e := range fixtureEdges {
		out[i] = Tx(i+1, e.from, e.to, e.wei, e.ts)
	}
	return out
}

// FixtureGraph returns the frozen eight-edge fixture graph.
func FixtureGraph() *txgraph.Graph {
	g := BuildGraph(FixtureTransactions())
	g.Freeze()
	return g
}

// BuildGraph inserts txs into a new unfrozen graph, creating nodes as needed.
func BuildGraph(txs []txgraph.Transaction) *txgraph.Graph {
	g := txgraph.NewGraph()
	for _, tx := range txs {
		if _, err := g.AddTransaction(tx); err != nil {
			panic(err)
		}
	}
	return g
}
