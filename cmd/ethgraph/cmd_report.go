// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/report"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts, err := reportOptions()
	if err != nil {
		return err
	}

	g, path, err := loadGraph(reportFile)
	if err != nil {
		return err
	}
	g.Freeze()

	ix, err := loadPrices(ctx, g, reportPrices)
	if err != nil {
		return err
	}

	r, err := report.Build(ctx, g, ix, opts)
	if err != nil {
		return fmt.Errorf("report %s: %w", path, err)
	}
	rt.logger.Info("report built", "graph", path, "edges", g.EdgeCount())

	if reportPairLogs {
		written, err := report.SavePairLogs(rt.cfg.InData(rt.cfg.Report.PairLogDir), r)
		if err != nil {
			return err
		}
		for _, f := range written {
			rt.logger.Debug("pair log written", "path", f)
		}
	}

	w := cmd.OutOrStdout()
	if reportJSON {
		return report.WriteJSON(w, r)
	}
	return report.RenderText(w, r, rt.out.Mode())
}

// reportOptions merges --lower/--upper over the configured bounds.
func reportOptions() (report.Options, error) {
	lower, upper := rt.cfg.Report.LowerUSD, rt.cfg.Report.UpperUSD
	if reportLower >= 0 {
		lower = reportLower
	}
	if reportUpper >= 0 {
		upper = reportUpper
	}
	if lower > upper {
		return report.Options{}, fmt.Errorf("lower bound %v is above upper bound %v", lower, upper)
	}
	return report.Options{
		Lower:   decimal.NewFromFloat(lower),
		Upper:   decimal.NewFromFloat(upper),
		Workers: rt.cfg.Report.Workers,
	}, nil
}

func runGraphStats(cmd *cobra.Command, _ []string) error {
	g, path, err := loadGraph(graphFile)
	if err != nil {
		return err
	}
	g.Freeze()
	stats := g.Stats()

	const width = 12
	out := rt.out
	out.Title("Graph " + path)
	out.KeyValue("Nodes", strconv.Itoa(stats.NodeCount), width)
	out.KeyValue("Edges", strconv.Itoa(stats.EdgeCount), width)
	out.KeyValue("Self loops", strconv.Itoa(stats.SelfLoops), width)

	start, stop := graphSpan(g, time.Now())
	if stats.EdgeCount > 0 {
		out.KeyValue("First hour", start.Format(time.RFC3339), width)
		out.KeyValue("Last hour", stop.Add(-time.Hour).Format(time.RFC3339), width)
	}
	return nil
}
