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
	"strconv"

	"github.com/AleutianAI/ethgraph/services/ledger/crawler"
	"github.com/AleutianAI/ethgraph/services/ledger/etherscan"
	"github.com/AleutianAI/ethgraph/services/ledger/export"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/spf13/cobra"
)

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cc, err := crawlConfigFromFlags(rt.cfg.Crawl)
	if err != nil {
		return err
	}
	path := rt.cfg.GraphPath(crawlFile)
	logger := rt.logger.Slog()

	key, err := rt.cfg.APIKey()
	if err != nil {
		return err
	}
	client, err := etherscan.NewClient(rt.cfg.Etherscan, key, etherscan.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []crawler.Option{crawler.WithLogger(logger)}

	var checkpoints *crawler.CheckpointStore
	if rt.cfg.Checkpoints.Enabled || crawlResume != "" {
		db, err := openCheckpoints()
		if err != nil {
			return err
		}
		defer db.Close()
		checkpoints = crawler.NewCheckpointStore(db)
		opts = append(opts, crawler.WithCheckpointer(checkpoints))
	}

	if crawlPublish {
		pub, err := export.NewKafkaPublisher(rt.cfg.Kafka, export.WithKafkaLogger(logger))
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, crawler.WithEdgeSink(pub))
	}

	session, err := openSession(ctx, cc, path, checkpoints)
	if err != nil {
		return err
	}

	res, runErr := crawler.New(client, opts...).Run(ctx, session)

	// A failed or cancelled run leaves a consistent partial graph; keep it.
	if err := txgraph.Save(path, session.Graph); err != nil {
		return errors.Join(runErr, err)
	}
	printCrawlResult(session, res, path)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl %s: %w", session.ID, runErr)
	}
	return nil
}

// crawlConfigFromFlags applies crawl flags over the configured crawl.
func crawlConfigFromFlags(base crawler.Config) (crawler.Config, error) {
	cc := base
	if crawlSeed != "" {
		cc.Seed = crawlSeed
	}
	if crawlMaxEdges > 0 {
		cc.MaxEdges = crawlMaxEdges
	}
	if crawlMaxDepth >= 0 {
		cc.MaxDepth = crawlMaxDepth
	}
	if crawlStrategy != "" {
		s, err := crawler.ParseStrategy(crawlStrategy)
		if err != nil {
			return crawler.Config{}, err
		}
		cc.Strategy = s
	}
	return cc, nil
}

// openSession picks between a fresh crawl, a continued graph file and a
// resumed checkpoint.
func openSession(ctx context.Context, cc crawler.Config, path string, checkpoints *crawler.CheckpointStore) (*crawler.Session, error) {
	switch {
	case crawlResume != "":
		if checkpoints == nil {
			return nil, errors.New("resume needs the checkpoint store")
		}
		s, err := checkpoints.LoadSession(ctx, crawlResume)
		if err != nil {
			return nil, err
		}
		if crawlMaxEdges > 0 {
			s.MaxEdges = crawlMaxEdges
		}
		rt.logger.Info("resuming session", "session", s.ID, "edges", s.Graph.EdgeCount())
		return s, nil

	case crawlContinue:
		g, err := txgraph.Load(path)
		if err != nil {
			return nil, err
		}
		rt.logger.Info("continuing graph", "path", path, "edges", g.EdgeCount(), "nodes", g.NodeCount())
		return crawler.ContinueSession(cc, g)

	default:
		return crawler.NewSession(cc)
	}
}

func printCrawlResult(s *crawler.Session, res crawler.Result, path string) {
	const width = 12
	out := rt.out
	out.Title("Crawl " + string(res.Termination))
	out.KeyValue("Session", s.ID, width)
	out.KeyValue("Seed", s.Seed.String(), width)
	out.KeyValue("Strategy", string(s.Strategy), width)
	out.KeyValue("Queried", strconv.Itoa(res.Queried), width)
	out.KeyValue("Accepted", strconv.Itoa(res.Accepted), width)
	out.KeyValue("Rejected", strconv.Itoa(res.Rejected), width)
	out.KeyValue("Edges", fmt.Sprintf("%d / %d", res.Edges, s.MaxEdges), width)
	out.KeyValue("Nodes", strconv.Itoa(res.Nodes), width)
	out.KeyValue("Graph", path, width)
	if res.Termination == crawler.TerminationFailed {
		out.Warning("Crawl stopped on a fetch error; resume with --resume " + s.ID)
	}
}
