// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/ethgraph/pkg/ux"
	"github.com/AleutianAI/ethgraph/services/ledger/ledgertest"
	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func buildFixtureReport(t *testing.T) *Report {
	t.Helper()
	r, err := Build(context.Background(), ledgertest.FixtureGraph(), ledgertest.FixtureIndex(), DefaultOptions())
	require.NoError(t, err)
	return r
}

func TestBuild_Fixture(t *testing.T) {
	r := buildFixtureReport(t)
	require.Len(t, r.Sections, 4)

	tests := []struct {
		name      string
		edges     int
		total     int64
		mean      int64
		hasMean   bool
		flow      int64
		hasFlow   bool
		pairCount int
	}{
		{SectionFull, 8, 21011, 2627, true, 0, false, 0},
		{SectionPriceFiltered, 2, 1127, 564, true, 0, false, 0},
		{SectionTwoWay, 6, 12009, 2002, true, 3755, true, 3},
		{SectionTwoWayPriceFiltered, 0, 0, 0, false, 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := r.Section(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.edges, s.Edges)
			assert.Equal(t, 5, s.Nodes, "filters keep every node")
			assert.Equal(t, tt.total, s.Total.Rounded)
			if tt.hasMean {
				require.NotNil(t, s.Mean)
				assert.Equal(t, tt.mean, s.Mean.Rounded)
			} else {
				assert.Nil(t, s.Mean)
			}
			if tt.hasFlow {
				require.NotNil(t, s.Flow)
				assert.Equal(t, tt.flow, s.Flow.Rounded)
				assert.Len(t, s.Pairs, tt.pairCount)
			} else {
				assert.Nil(t, s.Flow)
			}
		})
	}

	full, _ := r.Section(SectionFull)
	assert.True(t, decimal.RequireFromString("21010.5").Equal(full.Total.Exact))
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), ledgertest.FixtureGraph(), ledgertest.FixtureIndex(),
		Options{Lower: decimal.NewFromInt(5), Upper: decimal.NewFromInt(1)})
	assert.Error(t, err)

	unpriced := ledgertest.BuildGraph([]txgraph.Transaction{
		ledgertest.Tx(1, ledgertest.AddrA, ledgertest.AddrB, "1", ledgertest.T0-60),
	})
	_, err = Build(context.Background(), unpriced, ledgertest.FixtureIndex(), DefaultOptions())
	assert.ErrorIs(t, err, prices.ErrPriceNotFound)
}

func TestBuild_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	buildFixtureReport(t)
	_, err := Build(ctx, nil, ledgertest.FixtureIndex(), DefaultOptions())
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	builds := map[bool]int64{}
	sections := map[string]uint64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "report_builds_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					v, _ := dp.Attributes.Value("success")
					builds[v.AsBool()] += dp.Value
				}
			case "report_section_edges":
				h, ok := m.Data.(metricdata.Histogram[int64])
				require.True(t, ok)
				for _, dp := range h.DataPoints {
					v, _ := dp.Attributes.Value("section")
					sections[v.AsString()] += dp.Count
				}
			}
		}
	}

	assert.Equal(t, map[bool]int64{true: 1, false: 1}, builds)
	assert.Equal(t, map[string]uint64{
		SectionFull:                1,
		SectionPriceFiltered:       1,
		SectionTwoWay:              1,
		SectionTwoWayPriceFiltered: 1,
	}, sections)
}

func TestRenderText_Machine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, buildFixtureReport(t), ux.ModeMachine))

	out := buf.String()
	for _, want := range []string{
		"full.edges\t8\n",
		"full.volume_usd\t21011\n",
		"full.mean_usd\t2627\n",
		"price_filtered.edges\t2\n",
		"price_filtered.volume_usd\t1127\n",
		"price_filtered.mean_usd\t564\n",
		"two_way.edges\t6\n",
		"two_way.volume_usd\t12009\n",
		"two_way.flow_usd\t3755\n",
		"two_way.pairs\t3\n",
		"two_way_price_filtered.edges\t0\n",
		"two_way_price_filtered.volume_usd\t0\n",
		"two_way_price_filtered.mean_usd\tn/a\n",
		"two_way_price_filtered.flow_usd\t0\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ethgraph report", "machine mode has no titles")
}

func TestRenderText_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, buildFixtureReport(t), ux.ModePlain))

	out := buf.String()
	assert.Contains(t, out, "ethgraph report (filter $10 to $1000)")
	assert.Contains(t, out, "Transactions between $10 and $1000")
	assert.Contains(t, out, "Two-way transactions between $10 and $1000")
	assert.Contains(t, out, "21011")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, buildFixtureReport(t)))

	var doc struct {
		Sections []struct {
			Name  string `json:"name"`
			Edges int    `json:"edges"`
			Total struct {
				Exact   string `json:"exact"`
				Rounded int64  `json:"rounded"`
			} `json:"total"`
			Flow *struct {
				Rounded int64 `json:"rounded"`
			} `json:"flow"`
		} `json:"sections"`
	}
	require.NoError(t, sonnet.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Sections, 4)
	assert.Equal(t, SectionFull, doc.Sections[0].Name)
	assert.Equal(t, "21010.5", doc.Sections[0].Total.Exact)
	assert.Equal(t, int64(21011), doc.Sections[0].Total.Rounded)
	assert.Nil(t, doc.Sections[0].Flow)
	require.NotNil(t, doc.Sections[2].Flow)
	assert.Equal(t, int64(3755), doc.Sections[2].Flow.Rounded)
}

func TestWritePairLog(t *testing.T) {
	r := buildFixtureReport(t)
	s, _ := r.Section(SectionTwoWay)
	txs := ledgertest.FixtureTransactions()

	var buf bytes.Buffer
	require.NoError(t, WritePairLog(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "# 3 pairs, 6 edges")
	assert.Contains(t, out, "pair 1: "+ledgertest.AddrA.String()+" <-> "+ledgertest.AddrB.String())
	assert.Contains(t, out, ledgertest.AddrA.String()+" -> "+ledgertest.AddrB.String()+": 1 edges, 127.00 USD")
	assert.Contains(t, out, txs[0].Hash+"  1700000100  127.00")
	assert.Contains(t, out, "volume 1627.00 USD, flow 1373.00 USD")
	assert.Contains(t, out, "total volume 12009.00 USD, total flow 3755.00 USD")
	assert.Equal(t, 3, strings.Count(out, "\npair "))
}

func TestSavePairLogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	paths, err := SavePairLogs(dir, buildFixtureReport(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "pairs_two_way.log"),
		filepath.Join(dir, "pairs_two_way_price_filtered.log"),
	}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "# 0 pairs, 0 edges")
}
