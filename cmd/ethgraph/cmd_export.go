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
	"fmt"
	"path/filepath"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/export"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/spf13/cobra"
)

// exportValuer prices edges for export when --prices is given or the
// configured series loads. Without prices, edges are exported unvalued.
func exportValuer(ctx context.Context, g *txgraph.Graph) *analytics.Valuer {
	ix, err := loadPrices(ctx, g, reportPrices)
	if err != nil {
		rt.logger.Warn("exporting without USD values", "error", err)
		return nil
	}
	return analytics.NewValuer(ix)
}

func runExportNeo4j(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, path, err := loadGraph(graphFile)
	if err != nil {
		return err
	}
	g.Freeze()
	v := exportValuer(ctx, g)

	nc := rt.cfg.Neo4j
	if exportBatch > 0 {
		nc.BatchSize = exportBatch
	}
	exporter, err := export.NewNeo4jExporter(ctx, nc, rt.logger.Slog())
	if err != nil {
		return err
	}
	defer exporter.Close(context.WithoutCancel(ctx))

	written, err := exporter.ExportGraph(ctx, g, v)
	if err != nil {
		return fmt.Errorf("export %s to neo4j: %w", path, err)
	}
	rt.out.Success(fmt.Sprintf("Merged %d transfers from %s into %s", written, path, nc.URI))
	return nil
}

func runExportKafka(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, path, err := loadGraph(graphFile)
	if err != nil {
		return err
	}
	g.Freeze()

	opts := []export.KafkaOption{export.WithKafkaLogger(rt.logger.Slog())}
	if v := exportValuer(ctx, g); v != nil {
		opts = append(opts, export.WithKafkaValuer(v))
	}
	pub, err := export.NewKafkaPublisher(rt.cfg.Kafka, opts...)
	if err != nil {
		return err
	}
	defer pub.Close()

	batch := exportBatch
	if batch <= 0 {
		batch = 100
	}
	sent, err := pub.PublishGraph(ctx, filepath.Base(path), g, batch)
	if err != nil {
		return fmt.Errorf("export %s to kafka: %w", path, err)
	}
	rt.out.Success(fmt.Sprintf("Published %d edges from %s to %s", sent, path, pub.Topic()))
	return nil
}
