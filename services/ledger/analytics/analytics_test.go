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
	"errors"
	"testing"

	"github.com/AleutianAI/ethgraph/services/ledger/ledgertest"
	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertUSD(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func fixtureValuer() *Valuer {
	return NewValuer(ledgertest.FixtureIndex())
}

func hashes(g *txgraph.Graph) []string {
	out := make([]string, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		out = append(out, e.Tx.Hash)
	}
	return out
}

// =============================================================================
// Valuer
// =============================================================================

func TestValuer_USD(t *testing.T) {
	v := fixtureValuer()
	txs := ledgertest.FixtureTransactions()

	tests := []struct {
		name string
		tx   txgraph.Transaction
		want string
	}{
		{"first bucket", txs[0], "127"},
		{"second bucket", txs[2], "1000"},
		{"past last bucket uses latest price", txs[6], "5000"},
		{"fractional", txs[7], "4001.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.USD(tt.tx)
			require.NoError(t, err)
			assertUSD(t, tt.want, got)
		})
	}
}

func TestValuer_Errors(t *testing.T) {
	v := fixtureValuer()

	early := ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0-1)
	_, err := v.USD(early)
	require.ErrorIs(t, err, prices.ErrPriceNotFound)
	var lookup *prices.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.True(t, lookup.BeforeSeries)

	badValue := ledgertest.Tx(2, ledgertest.AddrA, ledgertest.AddrB, "0xff", ledgertest.T0)
	_, err = v.USD(badValue)
	assert.ErrorIs(t, err, txgraph.ErrMalformedTransaction)

	badTime := ledgertest.Tx(3, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0)
	badTime.TimeStamp = "yesterday"
	_, err = v.USD(badTime)
	assert.ErrorIs(t, err, txgraph.ErrMalformedTransaction)
}

// =============================================================================
// Volume
// =============================================================================

func TestVolume_Fixture(t *testing.T) {
	g := ledgertest.FixtureGraph()
	v := fixtureValuer()

	total, err := TotalVolume(g, v)
	require.NoError(t, err)
	assertUSD(t, "21010.5", total)
	assert.Equal(t, int64(21011), total.Ceil().IntPart())

	mean, err := MeanVolume(g, v)
	require.NoError(t, err)
	assertUSD(t, "2626.3125", mean)
	assert.Equal(t, int64(2627), mean.Ceil().IntPart())
}

func TestVolume_Empty(t *testing.T) {
	g := txgraph.NewGraph()
	v := fixtureValuer()

	total, err := TotalVolume(g, v)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = MeanVolume(g, v)
	assert.ErrorIs(t, err, ErrEmptyGraph)

	_, err = MeanVolume(nil, v)
	assert.ErrorIs(t, err, ErrNilGraph)
}

// =============================================================================
// Filters
// =============================================================================

func TestFilterByUSD(t *testing.T) {
	g := ledgertest.FixtureGraph()
	v := fixtureValuer()
	txs := ledgertest.FixtureTransactions()

	tests := []struct {
		name       string
		lower      string
		upper      string
		wantHashes []string
	}{
		{"fixture range", "10", "1000", []string{txs[0].Hash, txs[2].Hash}},
		{"bounds are inclusive", "127", "127", []string{txs[0].Hash}},
		{"nothing in range", "0", "1", []string{}},
		{"everything", "0", "100000", hashes(g)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterByUSD(g, v, decimal.RequireFromString(tt.lower), decimal.RequireFromString(tt.upper))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHashes, hashes(got))
			assert.Equal(t, g.Addresses(), got.Addresses(), "node set is preserved")
			assert.True(t, got.IsFrozen())
		})
	}
	assert.Equal(t, 8, g.EdgeCount(), "input is not modified")
}

func TestFilterByUSD_FixtureFigures(t *testing.T) {
	v := fixtureValuer()
	filtered, err := FilterByUSD(ledgertest.FixtureGraph(), v, decimal.NewFromInt(10), decimal.NewFromInt(1000))
	require.NoError(t, err)

	total, err := TotalVolume(filtered, v)
	require.NoError(t, err)
	assertUSD(t, "1127", total)

	mean, err := MeanVolume(filtered, v)
	require.NoError(t, err)
	assert.Equal(t, int64(564), mean.Ceil().IntPart())
}

func TestFilterByUSD_Errors(t *testing.T) {
	v := fixtureValuer()

	_, err := FilterByUSD(ledgertest.FixtureGraph(), v, decimal.NewFromInt(10), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	unpriced := ledgertest.BuildGraph([]txgraph.Transaction{
		ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0-10),
	})
	_, err = FilterByUSD(unpriced, v, decimal.Zero, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, prices.ErrPriceNotFound)
}

func TestFilterTwoWay(t *testing.T) {
	g := ledgertest.FixtureGraph()
	txs := ledgertest.FixtureTransactions()

	two, err := FilterTwoWay(g)
	require.NoError(t, err)
	assert.Equal(t, []string{
		txs[0].Hash, txs[1].Hash, txs[2].Hash, txs[3].Hash, txs[4].Hash, txs[5].Hash,
	}, hashes(two))
	assert.Equal(t, 5, two.NodeCount())

	total, err := TotalVolume(two, fixtureValuer())
	require.NoError(t, err)
	assertUSD(t, "12009", total)
}

func TestFilterTwoWay_SelfLoopKept(t *testing.T) {
	g := ledgertest.BuildGraph([]txgraph.Transaction{
		ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrA, "1", ledgertest.T0),
		ledgertest.Tx(2, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0),
	})
	two, err := FilterTwoWay(g)
	require.NoError(t, err)
	assert.Equal(t, 1, two.EdgeCount())
	assert.Equal(t, ledgertest.AddrA, two.Edges()[0].To)
}

func TestFilterTwoWay_OfPriceFiltered(t *testing.T) {
	v := fixtureValuer()
	filtered, err := FilterByUSD(ledgertest.FixtureGraph(), v, decimal.NewFromInt(10), decimal.NewFromInt(1000))
	require.NoError(t, err)

	two, err := FilterTwoWay(filtered)
	require.NoError(t, err)
	assert.Equal(t, 0, two.EdgeCount())

	flow, err := PairwiseFlow(context.Background(), two, v)
	require.NoError(t, err)
	assert.Empty(t, flow.Pairs)
	assert.True(t, flow.Volume.IsZero())
	assert.True(t, flow.Flow.IsZero())
}

// =============================================================================
// Pairwise flow
// =============================================================================

func TestPairwiseFlow_Fixture(t *testing.T) {
	v := fixtureValuer()
	two, err := FilterTwoWay(ledgertest.FixtureGraph())
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 16} {
		t.Logf("workers=%d", workers)
		flow, err := PairwiseFlow(context.Background(), two, v, WithWorkers(workers))
		require.NoError(t, err)

		assert.Equal(t, 6, flow.Edges)
		assertUSD(t, "12009", flow.Volume)
		assertUSD(t, "3755", flow.Flow)

		require.Len(t, flow.Pairs, 3)
		want := []struct {
			a, b         txgraph.Address
			fwd, rev, fl string
		}{
			{ledgertest.AddrA, ledgertest.AddrB, "127", "1500", "1373"},
			{ledgertest.AddrC, ledgertest.AddrD, "1000", "2100", "1100"},
			{ledgertest.AddrA, ledgertest.AddrC, "4282", "3000", "1282"},
		}
		for i, w := range want {
			p := flow.Pairs[i]
			assert.Equal(t, w.a, p.A)
			assert.Equal(t, w.b, p.B)
			assertUSD(t, w.fwd, p.ForwardUSD)
			assertUSD(t, w.rev, p.ReverseUSD)
			assertUSD(t, w.fl, p.Flow)
			assert.Len(t, p.Forward, 1)
			assert.Len(t, p.Reverse, 1)
		}
	}
}

func TestPairwiseFlow_Symmetric(t *testing.T) {
	v := fixtureValuer()
	txs := ledgertest.FixtureTransactions()

	forward, err := PairwiseFlow(context.Background(), ledgertest.BuildGraph(txs[:2]), v)
	require.NoError(t, err)
	reversed, err := PairwiseFlow(context.Background(), ledgertest.BuildGraph([]txgraph.Transaction{txs[1], txs[0]}), v)
	require.NoError(t, err)

	assert.True(t, forward.Flow.Equal(reversed.Flow))
	assert.True(t, forward.Volume.Equal(reversed.Volume))
	assert.Equal(t, ledgertest.AddrB, reversed.Pairs[0].A)
}

func TestPairwiseFlow_SelfLoop(t *testing.T) {
	g := ledgertest.BuildGraph([]txgraph.Transaction{
		ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrA, "1000000000000000000", ledgertest.T0+10),
		ledgertest.Tx(2, ledgertest.AddrA, ledgertest.AddrA, "500000000000000000", ledgertest.T0+20),
	})
	flow, err := PairwiseFlow(context.Background(), g, fixtureValuer())
	require.NoError(t, err)

	require.Len(t, flow.Pairs, 1)
	p := flow.Pairs[0]
	assert.True(t, p.SelfLoop())
	assert.Len(t, p.Forward, 2, "each self-loop edge is counted once")
	assert.Empty(t, p.Reverse)
	assertUSD(t, "3000", p.Volume)
	assert.True(t, p.Flow.IsZero())
}

func TestPairwiseFlow_Errors(t *testing.T) {
	v := fixtureValuer()

	unpriced := ledgertest.BuildGraph([]txgraph.Transaction{
		ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0-10),
	})
	_, err := PairwiseFlow(context.Background(), unpriced, v)
	assert.ErrorIs(t, err, prices.ErrPriceNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PairwiseFlow(ctx, ledgertest.FixtureGraph(), v)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = PairwiseFlow(context.Background(), nil, v)
	assert.ErrorIs(t, err, ErrNilGraph)
}
