// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads ethgraph.yaml.
//
// A missing file is not an error: every field has a default matching the
// command line tool's built-in constants. Command line flags are applied on
// top of the loaded values by the caller.
package config

import (
	"path/filepath"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/crawler"
	"github.com/AleutianAI/ethgraph/services/ledger/etherscan"
	"github.com/AleutianAI/ethgraph/services/ledger/export"
	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/AleutianAI/ethgraph/services/ledger/report"
	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
)

// Defaults.
const (
	DefaultPath       = "ethgraph.yaml"
	DefaultDataDir    = "data"
	DefaultGraphFile  = "example.json"
	DefaultAPIKeyFile = "api_key.txt"
	DefaultPriceFile  = "eth_prices.csv"
	DefaultServeAddr  = "127.0.0.1:8088"

	// APIKeyEnv overrides the key file when set.
	APIKeyEnv = "ETHGRAPH_API_KEY"
)

// Price source names.
const (
	PriceSourceCSV    = "csv"
	PriceSourceInflux = "influx"
)

// Config is the whole of ethgraph.yaml.
type Config struct {
	// DataDir holds graphs, price files, pair logs and checkpoints.
	DataDir string `yaml:"data_dir" validate:"required"`

	// GraphFile is the default graph name inside DataDir.
	GraphFile string `yaml:"graph_file" validate:"required"`

	// APIKeyFile holds the Etherscan key. Ignored when APIKeyEnv is set.
	APIKeyFile string `yaml:"api_key_file"`

	Crawl       crawler.Config     `yaml:"crawl"`
	Etherscan   etherscan.Config   `yaml:"etherscan"`
	Prices      PricesConfig       `yaml:"prices"`
	Report      ReportConfig       `yaml:"report"`
	Logging     LoggingConfig      `yaml:"logging"`
	Telemetry   telemetry.Config   `yaml:"telemetry"`
	Checkpoints CheckpointConfig   `yaml:"checkpoints"`
	Kafka       export.KafkaConfig `yaml:"kafka"`
	Neo4j       export.Neo4jConfig `yaml:"neo4j"`
	Serve       ServeConfig        `yaml:"serve"`
}

// PricesConfig selects where the hourly ETH/USD series comes from.
type PricesConfig struct {
	Source string `yaml:"source" validate:"oneof=csv influx"`

	// CSVFile is relative to DataDir unless absolute.
	CSVFile string `yaml:"csv_file"`

	// Symbol is the Yahoo ticker used by "prices fetch".
	Symbol string `yaml:"symbol" validate:"required"`

	Influx InfluxConfig `yaml:"influx"`
}

// InfluxConfig locates the price series in InfluxDB.
type InfluxConfig struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// ReportConfig holds the default USD filter.
type ReportConfig struct {
	LowerUSD float64 `yaml:"lower_usd" validate:"gte=0,ltefield=UpperUSD"`
	UpperUSD float64 `yaml:"upper_usd" validate:"gte=0"`

	// PairLogDir is relative to DataDir unless absolute.
	PairLogDir string `yaml:"pair_log_dir"`

	Workers int `yaml:"workers" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"loglevel"`
	LogDir string `yaml:"log_dir"`
	JSON   bool   `yaml:"json"`
}

// CheckpointConfig configures the badger checkpoint store.
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is relative to DataDir unless absolute.
	Path string `yaml:"path"`

	GCInterval time.Duration `yaml:"gc_interval"`
}

// ServeConfig configures the HTTP report API.
type ServeConfig struct {
	Addr string `yaml:"addr" validate:"hostname_port"`

	// Watch reloads the graph file when it changes on disk.
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	lower, _ := report.DefaultLower.Float64()
	upper, _ := report.DefaultUpper.Float64()
	return Config{
		DataDir:    DefaultDataDir,
		GraphFile:  DefaultGraphFile,
		APIKeyFile: DefaultAPIKeyFile,
		Crawl:      crawler.DefaultConfig(),
		Etherscan:  etherscan.DefaultConfig(),
		Prices: PricesConfig{
			Source:  PriceSourceCSV,
			CSVFile: DefaultPriceFile,
			Symbol:  "ETH-USD",
			Influx: InfluxConfig{
				URL:         "http://localhost:8086",
				Org:         "ethgraph",
				Bucket:      "prices",
				Measurement: prices.DefaultMeasurement,
			},
		},
		Report: ReportConfig{
			LowerUSD:   lower,
			UpperUSD:   upper,
			PairLogDir: ".",
		},
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: telemetry.DefaultConfig(),
		Checkpoints: CheckpointConfig{
			Enabled:    true,
			Path:       "checkpoints",
			GCInterval: 5 * time.Minute,
		},
		Kafka: export.KafkaConfig{
			Topic:    export.DefaultTopic,
			ClientID: "ethgraph",
			Timeout:  10 * time.Second,
		},
		Neo4j: export.Neo4jConfig{
			URI:       "neo4j://localhost:7687",
			Username:  "neo4j",
			Database:  "neo4j",
			BatchSize: export.DefaultNeo4jBatchSize,
		},
		Serve: ServeConfig{Addr: DefaultServeAddr, Watch: true},
	}
}

// InData resolves p against DataDir unless it is absolute.
func (c Config) InData(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// GraphPath returns the path of the named graph, or of GraphFile when name
// is empty.
func (c Config) GraphPath(name string) string {
	if name == "" {
		name = c.GraphFile
	}
	return c.InData(name)
}
