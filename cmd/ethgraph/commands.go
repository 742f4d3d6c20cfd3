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
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	outputMode string
	logLevel   string

	// crawl
	crawlSeed     string
	crawlMaxEdges int
	crawlStrategy string
	crawlMaxDepth int
	crawlFile     string
	crawlContinue bool
	crawlResume   string
	crawlPublish  bool

	// report
	reportFile     string
	reportPrices   string
	reportLower    float64
	reportUpper    float64
	reportJSON     bool
	reportPairLogs bool

	// graph, export, serve
	graphFile   string
	exportBatch int

	// prices
	pricesFile   string
	pricesSymbol string
	pricesStart  string
	pricesEnd    string

	// serve
	serveAddr string

	rootCmd = &cobra.Command{
		Use:   "ethgraph",
		Short: "Crawl the Ethereum transaction graph and report USD volume and flow",
		Long: `ethgraph walks Etherscan transaction lists outward from a seed address,
stores the resulting transaction graph and prices its edges in USD to report
volume and net flow between accounts.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupRuntime,
	}

	// --- Crawling ---
	crawlCmd = &cobra.Command{
		Use:   "crawl",
		Short: "Crawl transactions from a seed address and save the graph",
		Example: `  ethgraph crawl --seed 0x60D170c2b604a4B613b43805aE4657476DCA9E38 --max-edges 200
  ethgraph crawl --continue --file example.json
  ethgraph crawl --resume 3f1c...`,
		Args: cobra.NoArgs,
		RunE: runCrawl, // Defined in cmd_crawl.go
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Inspect crawl checkpoints",
	}
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored crawl sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList, // Defined in cmd_sessions.go
	}
	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete [session_id]",
		Short: "Delete a stored crawl session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDelete, // Defined in cmd_sessions.go
	}

	// --- Analytics ---
	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print USD volume and flow for a saved graph",
		Args:  cobra.NoArgs,
		RunE:  runReport, // Defined in cmd_report.go
	}

	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Inspect saved graphs",
	}
	graphStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print node and edge counts of a saved graph",
		Args:  cobra.NoArgs,
		RunE:  runGraphStats, // Defined in cmd_report.go
	}

	// --- Prices ---
	pricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "Manage the hourly ETH/USD price series",
	}
	pricesFetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Download hourly prices from Yahoo Finance into a CSV file",
		Args:  cobra.NoArgs,
		RunE:  runPricesFetch, // Defined in cmd_prices.go
	}
	pricesImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Load a price CSV file into InfluxDB",
		Args:  cobra.NoArgs,
		RunE:  runPricesImport, // Defined in cmd_prices.go
	}

	// --- Export ---
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Push a saved graph to downstream systems",
	}
	exportNeo4jCmd = &cobra.Command{
		Use:   "neo4j",
		Short: "Merge accounts and transfers into Neo4j",
		Args:  cobra.NoArgs,
		RunE:  runExportNeo4j, // Defined in cmd_export.go
	}
	exportKafkaCmd = &cobra.Command{
		Use:   "kafka",
		Short: "Publish every edge to the Kafka edge topic",
		Args:  cobra.NoArgs,
		RunE:  runExportKafka, // Defined in cmd_export.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve reports for the saved graph over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Config ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage ethgraph.yaml",
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit, // Defined in runtime.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ethgraph.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output style: rich, plain or machine (default: detect from the terminal)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().StringVar(&crawlSeed, "seed", "", "Seed address (default: crawl.seed)")
	crawlCmd.Flags().IntVar(&crawlMaxEdges, "max-edges", 0, "Edge budget (default: crawl.max_edges)")
	crawlCmd.Flags().StringVar(&crawlStrategy, "strategy", "", "Traversal order: relevance or depth")
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "max-depth", -1, "Hop limit for the depth strategy")
	crawlCmd.Flags().StringVar(&crawlFile, "file", "", "Graph file name inside the data directory")
	crawlCmd.Flags().BoolVar(&crawlContinue, "continue", false, "Load the graph file and keep crawling on top of it")
	crawlCmd.Flags().StringVar(&crawlResume, "resume", "", "Resume a checkpointed session by ID")
	crawlCmd.Flags().BoolVar(&crawlPublish, "publish", false, "Publish accepted edges to Kafka while crawling")
	crawlCmd.MarkFlagsMutuallyExclusive("continue", "resume")

	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportFile, "file", "", "Graph file name inside the data directory")
	reportCmd.Flags().StringVar(&reportPrices, "prices", "", "Price CSV file (default: prices.csv_file)")
	reportCmd.Flags().Float64Var(&reportLower, "lower", -1, "Lower USD bound of the price filter")
	reportCmd.Flags().Float64Var(&reportUpper, "upper", -1, "Upper USD bound of the price filter")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	reportCmd.Flags().BoolVar(&reportPairLogs, "pair-logs", true, "Write per-pair logs for the two-way sections")

	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphStatsCmd)
	graphCmd.PersistentFlags().StringVar(&graphFile, "file", "", "Graph file name inside the data directory")

	rootCmd.AddCommand(pricesCmd)
	pricesCmd.PersistentFlags().StringVar(&pricesFile, "file", "", "Price CSV file (default: prices.csv_file)")
	pricesCmd.AddCommand(pricesFetchCmd)
	pricesFetchCmd.Flags().StringVar(&pricesSymbol, "symbol", "", "Yahoo ticker (default: prices.symbol)")
	pricesFetchCmd.Flags().StringVar(&pricesStart, "start", "", "First day to fetch, YYYY-MM-DD (default: 30 days ago)")
	pricesFetchCmd.Flags().StringVar(&pricesEnd, "end", "", "Day after the last day to fetch, YYYY-MM-DD (default: now)")
	pricesCmd.AddCommand(pricesImportCmd)

	rootCmd.AddCommand(exportCmd)
	exportCmd.PersistentFlags().StringVar(&graphFile, "file", "", "Graph file name inside the data directory")
	exportCmd.PersistentFlags().StringVar(&reportPrices, "prices", "", "Price CSV file; edges carry USD values when prices load")
	exportCmd.PersistentFlags().IntVar(&exportBatch, "batch", 0, "Edges per request (default: 500 for Neo4j, 100 for Kafka)")
	exportCmd.AddCommand(exportNeo4jCmd)
	exportCmd.AddCommand(exportKafkaCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&graphFile, "file", "", "Graph file name inside the data directory")
	serveCmd.Flags().StringVar(&reportPrices, "prices", "", "Price CSV file (default: prices.csv_file)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr)")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}
