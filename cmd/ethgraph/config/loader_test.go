// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/crawler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "example.json", cfg.GraphFile)
	assert.Equal(t, crawler.DefaultSeed, cfg.Crawl.Seed)
	assert.Equal(t, 100, cfg.Crawl.MaxEdges)
	assert.Equal(t, 4, cfg.Crawl.MaxDepth)
	assert.Equal(t, 20, cfg.Etherscan.MaxPerAddress)
	assert.Equal(t, 10.0, cfg.Report.LowerUSD)
	assert.Equal(t, 1000.0, cfg.Report.UpperUSD)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().GraphFile, cfg.GraphFile)
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ethgraph.yaml")
	body := `
data_dir: /var/lib/ethgraph
crawl:
  max_edges: 250
  strategy: depth
etherscan:
  timeout: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ethgraph", cfg.DataDir)
	assert.Equal(t, 250, cfg.Crawl.MaxEdges)
	assert.Equal(t, crawler.StrategyDepth, cfg.Crawl.Strategy)
	assert.Equal(t, crawler.DefaultSeed, cfg.Crawl.Seed, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Etherscan.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/ethgraph/example.json", cfg.GraphPath(""))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad seed", "crawl:\n  seed: not-an-address\n"},
		{"zero budget", "crawl:\n  max_edges: 0\n"},
		{"unknown strategy", "crawl:\n  strategy: random\n"},
		{"inverted bounds", "report:\n  lower_usd: 500\n  upper_usd: 100\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
		{"unknown price source", "prices:\n  source: sqlite\n"},
		{"bad serve addr", "serve:\n  addr: nowhere\n"},
		{"empty data dir", "data_dir: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("crawl: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ethgraph.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "crawl")
	assert.Contains(t, raw, "report")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Crawl, cfg.Crawl)

	err = WriteDefault(path)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestConfig_InData(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("data", "prices.csv"), cfg.InData("prices.csv"))
	assert.Equal(t, "/tmp/prices.csv", cfg.InData("/tmp/prices.csv"))
	assert.Equal(t, filepath.Join("data", "other.json"), cfg.GraphPath("other.json"))
}

func TestConfig_APIKey(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "  ENVKEY  ")
		cfg := DefaultConfig()
		cfg.APIKeyFile = filepath.Join(t.TempDir(), "missing.txt")

		key, err := cfg.APIKey()
		require.NoError(t, err)
		var got string
		require.NoError(t, key.Use(func(k string) error {
			got = strings.Clone(k)
			return nil
		}))
		assert.Equal(t, "ENVKEY", got)
	})

	t.Run("file", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		path := filepath.Join(t.TempDir(), "api_key.txt")
		require.NoError(t, os.WriteFile(path, []byte("FILEKEY\n"), 0600))
		cfg := DefaultConfig()
		cfg.APIKeyFile = path

		key, err := cfg.APIKey()
		require.NoError(t, err)
		assert.Equal(t, "[REDACTED]", key.String())
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		cfg := DefaultConfig()
		cfg.APIKeyFile = filepath.Join(t.TempDir(), "missing.txt")

		_, err := cfg.APIKey()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
