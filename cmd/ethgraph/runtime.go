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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/ethgraph/cmd/ethgraph/config"
	"github.com/AleutianAI/ethgraph/pkg/logging"
	"github.com/AleutianAI/ethgraph/pkg/ux"
	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	store "github.com/AleutianAI/ethgraph/services/ledger/storage/badger"
	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"
)

// runtime is the per-invocation state built by setupRuntime.
type runtime struct {
	cfg      config.Config
	logger   *logging.Logger
	out      *ux.Printer
	shutdown func(context.Context) error
}

var rt runtime

func setupRuntime(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	mode := ux.DetectMode(cmd.OutOrStdout())
	if outputMode != "" {
		mode = ux.ParseMode(outputMode)
	}

	rt.cfg = cfg
	rt.out = ux.NewPrinter(cmd.OutOrStdout(), mode)
	rt.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.LogDir,
		Service: "ethgraph",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})

	rt.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	return nil
}

// closeRuntime flushes spans and closes the log file.
func closeRuntime() {
	if rt.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.shutdown(ctx); err != nil && rt.logger != nil {
			rt.logger.Warn("flush traces", "error", err)
		}
		cancel()
		rt.shutdown = nil
	}
	if rt.logger != nil {
		_ = rt.logger.Close()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	rt.out.Success(fmt.Sprintf("Wrote default configuration to %s", configPath))
	return nil
}

// loadGraph reads a graph from the data directory.
func loadGraph(name string) (*txgraph.Graph, string, error) {
	path := rt.cfg.GraphPath(name)
	g, err := txgraph.Load(path)
	if err != nil {
		return nil, path, err
	}
	return g, path, nil
}

// loadPrices builds the price index used to value g.
//
// A CSV override always wins. Otherwise prices.source decides; InfluxDB is
// queried for the hours spanned by g.
func loadPrices(ctx context.Context, g *txgraph.Graph, csvOverride string) (*prices.Index, error) {
	if csvOverride != "" {
		return prices.LoadCSV(csvOverride)
	}
	if rt.cfg.Prices.Source != config.PriceSourceInflux {
		return prices.LoadCSV(rt.cfg.InData(rt.cfg.Prices.CSVFile))
	}

	client, ps, err := openInfluxStore()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	start, stop := graphSpan(g, time.Now())
	ix, err := ps.LoadIndex(ctx, start, stop)
	if err != nil {
		return nil, fmt.Errorf("load prices from influx %s: %w", rt.cfg.Prices.Influx.URL, err)
	}
	rt.logger.Debug("prices loaded", "source", "influx", "buckets", ix.Len())
	return ix, nil
}

func openInfluxStore() (influxdb2.Client, *prices.InfluxStore, error) {
	ic := rt.cfg.Prices.Influx
	if ic.URL == "" {
		return nil, nil, errors.New("prices.influx.url is not set")
	}
	client := influxdb2.NewClient(ic.URL, ic.Token)
	ps, err := prices.NewInfluxStore(
		client.WriteAPIBlocking(ic.Org, ic.Bucket),
		client.QueryAPI(ic.Org),
		prices.InfluxConfig{
			Bucket:      ic.Bucket,
			Measurement: ic.Measurement,
			Symbol:      rt.cfg.Prices.Symbol,
		},
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, ps, nil
}

// graphSpan returns the hour-aligned range covering every edge timestamp.
// An empty graph spans the hour before now.
func graphSpan(g *txgraph.Graph, now time.Time) (time.Time, time.Time) {
	var lo, hi int64
	seen := false
	for _, e := range g.Edges() {
		ts, err := e.Tx.Unix()
		if err != nil {
			continue
		}
		if !seen || ts < lo {
			lo = ts
		}
		if !seen || ts > hi {
			hi = ts
		}
		seen = true
	}
	if !seen {
		return now.Add(-time.Hour).Truncate(time.Hour), now
	}
	start := time.Unix(lo, 0).UTC().Truncate(time.Hour)
	stop := time.Unix(hi, 0).UTC().Truncate(time.Hour).Add(time.Hour)
	return start, stop
}

// openCheckpoints opens the badger checkpoint directory.
func openCheckpoints() (*store.DB, error) {
	bc := store.DefaultConfig(rt.cfg.InData(rt.cfg.Checkpoints.Path))
	bc.GCInterval = rt.cfg.Checkpoints.GCInterval
	bc.Logger = rt.logger.Slog()
	db, err := store.Open(bc)
	if err != nil {
		return nil, fmt.Errorf("open checkpoints: %w", err)
	}
	return db, nil
}
