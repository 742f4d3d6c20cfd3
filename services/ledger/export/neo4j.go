// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/ethgraph/services/ledger/analytics"
	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultNeo4jBatchSize is the number of edges merged per query.
const DefaultNeo4jBatchSize = 500

// mergeEdgesQuery upserts accounts and one SENT_TO relationship per hash.
const mergeEdgesQuery = `
UNWIND $rows AS row
MERGE (sender:Account {id: row.sender})
MERGE (recipient:Account {id: row.recipient})
MERGE (sender)-[t:SENT_TO {hash: row.hash}]->(recipient)
SET t.value_wei = row.value_wei,
    t.block_number = row.block_number,
    t.block_timestamp = row.block_timestamp,
    t.usd = row.usd
`

// Neo4jConfig configures the graph export.
type Neo4jConfig struct {
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size"`
}

// queryRunner executes one write query. The driver-backed runner wraps
// neo4j.ExecuteQuery; tests substitute a recorder.
type queryRunner func(ctx context.Context, query string, params map[string]any) error

// Neo4jExporter merges graphs into Neo4j.
type Neo4jExporter struct {
	driver    neo4j.DriverWithContext
	run       queryRunner
	batchSize int
	logger    *slog.Logger
}

// NewNeo4jExporter connects to cfg.URI and verifies connectivity.
func NewNeo4jExporter(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jExporter, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity %s: %w", cfg.URI, err)
	}

	var configurers []neo4j.ExecuteQueryConfigurationOption
	if cfg.Database != "" {
		configurers = append(configurers, neo4j.ExecuteQueryWithDatabase(cfg.Database))
	}
	run := func(ctx context.Context, query string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, query, params, neo4j.EagerResultTransformer, configurers...)
		return err
	}
	e := newNeo4jExporter(run, cfg.BatchSize, logger)
	e.driver = driver
	return e, nil
}

func newNeo4jExporter(run queryRunner, batchSize int, logger *slog.Logger) *Neo4jExporter {
	if batchSize < 1 {
		batchSize = DefaultNeo4jBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jExporter{run: run, batchSize: batchSize, logger: logger}
}

// ExportGraph merges every edge of g and returns the number written.
// v may be nil, in which case relationships carry no usd property.
func (x *Neo4jExporter) ExportGraph(ctx context.Context, g *txgraph.Graph, v *analytics.Valuer) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "ethgraph.export", "Neo4jExporter.ExportGraph",
		trace.WithAttributes(attribute.Int("edges", g.EdgeCount())),
	)
	defer span.End()

	edges := g.Edges()
	written := 0
	for start := 0; start < len(edges); start += x.batchSize {
		end := min(start+x.batchSize, len(edges))
		rows := make([]map[string]any, 0, end-start)
		for _, e := range edges[start:end] {
			row, err := edgeRow(e, v)
			if err != nil {
				telemetry.RecordError(span, err)
				return written, err
			}
			rows = append(rows, row)
		}
		if err := x.run(ctx, mergeEdgesQuery, map[string]any{"rows": rows}); err != nil {
			telemetry.RecordError(span, err)
			return written, fmt.Errorf("neo4j merge batch at %d: %w", start, err)
		}
		written += len(rows)
		x.logger.Info("merged edge batch", "written", written, "total", len(edges))
	}
	telemetry.SetSpanOK(span)
	return written, nil
}

// Close releases the driver.
func (x *Neo4jExporter) Close(ctx context.Context) error {
	if x.driver == nil {
		return nil
	}
	return x.driver.Close(ctx)
}

func edgeRow(e *txgraph.Edge, v *analytics.Valuer) (map[string]any, error) {
	msg, err := newEdgeMessage("", e, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j row %s: %w", e.Tx.Hash, err)
	}
	var usd any
	if v != nil {
		val, err := v.USD(e.Tx)
		if err != nil {
			return nil, fmt.Errorf("neo4j row %s: %w", e.Tx.Hash, err)
		}
		usd = val.InexactFloat64()
	}
	return map[string]any{
		"hash":            msg.Hash,
		"sender":          msg.Sender,
		"recipient":       msg.Recipient,
		"value_wei":       msg.ValueWei,
		"block_number":    msg.BlockNumber,
		"block_timestamp": msg.BlockTimestamp,
		"usd":             usd,
	}, nil
}
