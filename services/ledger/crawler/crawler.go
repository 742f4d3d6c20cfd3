// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ethgraph.crawler"

// Source returns the transactions touching an address, most recent first.
//
// Transient failures are expected to be retried inside the source; any
// error returned is fatal to the crawl.
type Source interface {
	Transactions(ctx context.Context, addr txgraph.Address) ([]txgraph.Transaction, error)
}

// EdgeSink receives every accepted edge. Sink failures are logged and
// counted but never stop the crawl.
type EdgeSink interface {
	PublishEdge(ctx context.Context, sessionID string, edge *txgraph.Edge) error
}

// Checkpointer persists a session after every expansion.
type Checkpointer interface {
	SaveSession(ctx context.Context, s *Session) error
}

// Result summarizes one Run.
type Result struct {
	Termination Termination `json:"termination"`
	Queried     int         `json:"queried"`
	Accepted    int         `json:"accepted"`
	Rejected    int         `json:"rejected"`
	Edges       int         `json:"edges"`
	Nodes       int         `json:"nodes"`
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithEdgeSink publishes accepted edges to sink.
func WithEdgeSink(sink EdgeSink) Option {
	return func(c *Crawler) { c.sink = sink }
}

// WithCheckpointer saves the session after every expansion.
func WithCheckpointer(cp Checkpointer) Option {
	return func(c *Crawler) { c.checkpoints = cp }
}

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// Crawler drives sessions against a Source.
type Crawler struct {
	source      Source
	sink        EdgeSink
	checkpoints Checkpointer
	logger      *slog.Logger
}

// New creates a Crawler reading from source.
func New(source Source, opts ...Option) *Crawler {
	c := &Crawler{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run expands addresses until the session terminates.
//
// The budget is checked before every fetch and before every transaction,
// so the graph never exceeds s.MaxEdges. On cancellation the partial
// session is consistent and ctx.Err() is returned. On a source error the
// failing address is taken out of the trajectory again and the error is
// returned.
func (c *Crawler) Run(ctx context.Context, s *Session) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Crawler.Run",
		trace.WithAttributes(
			attribute.String("session", s.ID),
			attribute.String("strategy", string(s.Strategy)),
			attribute.Int("max_edges", s.MaxEdges),
		),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, c.logger).With("session", s.ID)
	logger.Info("crawl started",
		"seed", s.Seed.String(),
		"strategy", string(s.Strategy),
		"max_edges", s.MaxEdges,
		"edges", s.Graph.EdgeCount(),
	)

	var res Result
	s.Status = StatusRunning
	err := c.loop(ctx, s, &res, logger)

	res.Edges = s.Graph.EdgeCount()
	res.Nodes = s.Graph.NodeCount()
	s.Status = string(res.Termination)
	s.UpdatedAt = time.Now().UTC()
	c.checkpoint(context.WithoutCancel(ctx), s, logger)

	span.SetAttributes(
		attribute.String("termination", string(res.Termination)),
		attribute.Int("edges", res.Edges),
		attribute.Int("queried", res.Queried),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("crawl stopped", "termination", string(res.Termination), "edges", res.Edges, "error", err)
		return res, err
	}
	telemetry.SetSpanOK(span)
	logger.Info("crawl finished",
		"termination", string(res.Termination),
		"queried", res.Queried,
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"edges", res.Edges,
		"nodes", res.Nodes,
	)
	return res, nil
}

func (c *Crawler) loop(ctx context.Context, s *Session, res *Result, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			res.Termination = TerminationCancelled
			return err
		}
		if s.BudgetReached() {
			res.Termination = TerminationBudget
			return nil
		}
		addr, ok := s.Next()
		if !ok {
			res.Termination = TerminationExhausted
			return nil
		}

		if err := c.expand(ctx, s, addr, res, logger); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				res.Termination = TerminationCancelled
			} else {
				res.Termination = TerminationFailed
			}
			return err
		}
		c.checkpoint(ctx, s, logger)
	}
}

// expand queries one address and folds its transactions into s.
func (c *Crawler) expand(ctx context.Context, s *Session, addr txgraph.Address, res *Result, logger *slog.Logger) error {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Crawler.expand",
		trace.WithAttributes(
			attribute.String("address", addr.String()),
			attribute.Int("relevance", s.Relevance(addr)),
		),
	)
	defer span.End()

	s.begin(addr)
	logger.Info("querying address", "address", addr.Short(), "relevance", s.Relevance(addr))

	txs, err := c.source.Transactions(ctx, addr)
	if err != nil {
		s.rollback(addr)
		addressesTotal.WithLabelValues("error").Inc()
		telemetry.RecordError(span, err)
		logger.Warn("incorrect response", "address", addr.Short(), "error", err)
		return fmt.Errorf("expand %s: %w", addr, err)
	}
	res.Queried++
	addressesTotal.WithLabelValues("ok").Inc()
	logger.Info("correct response", "address", addr.Short(), "transactions", len(txs))

	accepted := 0
	for _, tx := range txs {
		edge, reason := s.Accept(tx)
		if edge == nil {
			res.Rejected++
			transactionsTotal.WithLabelValues(string(reason)).Inc()
			logger.Debug("skipped transaction", "hash", tx.Hash, "reason", string(reason))
			continue
		}
		accepted++
		res.Accepted++
		transactionsTotal.WithLabelValues("accepted").Inc()
		logger.Debug(fmt.Sprintf("Added transaction %s... --> %s... at %s",
			edge.From.Short(), edge.To.Short(), tx.TimeStamp))

		if c.sink != nil {
			if err := c.sink.PublishEdge(ctx, s.ID, edge); err != nil {
				sinkErrorsTotal.WithLabelValues("sink").Inc()
				logger.Warn("edge sink publish failed", "hash", tx.Hash, "error", err)
			}
		}
	}

	graphEdges.Set(float64(s.Graph.EdgeCount()))
	expandDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("accepted", accepted), attribute.Int("fetched", len(txs)))
	logger.Info("expanded address",
		"address", addr.Short(),
		"accepted", accepted,
		"edges", s.Graph.EdgeCount(),
		"max_edges", s.MaxEdges,
	)
	return nil
}

func (c *Crawler) checkpoint(ctx context.Context, s *Session, logger *slog.Logger) {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.SaveSession(ctx, s); err != nil {
		sinkErrorsTotal.WithLabelValues("checkpoint").Inc()
		logger.Warn("checkpoint failed", "error", err)
	}
}
