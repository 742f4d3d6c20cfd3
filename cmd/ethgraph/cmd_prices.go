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
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AleutianAI/ethgraph/services/ledger/prices"
	"github.com/spf13/cobra"
)

const dayLayout = "2006-01-02"

// priceFilePath resolves --file or prices.csv_file.
func priceFilePath() string {
	if pricesFile != "" {
		return pricesFile
	}
	return rt.cfg.InData(rt.cfg.Prices.CSVFile)
}

func runPricesFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	start, end, err := fetchWindow(time.Now().UTC())
	if err != nil {
		return err
	}
	symbol := pricesSymbol
	if symbol == "" {
		symbol = rt.cfg.Prices.Symbol
	}

	fetcher := &prices.YahooFetcher{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     rt.logger.Slog(),
	}
	records, err := fetcher.FetchHourly(ctx, symbol, start, end)
	if err != nil {
		return fmt.Errorf("fetch %s prices: %w", symbol, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("fetch %s prices: %w", symbol, prices.ErrEmptySeries)
	}

	path := priceFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create price directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write price series %s: %w", path, err)
	}
	if err := prices.WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write price series %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write price series %s: %w", path, err)
	}

	rt.out.Success(fmt.Sprintf("Wrote %d hourly %s prices to %s", len(records), symbol, path))
	return nil
}

// fetchWindow parses --start/--end. The default window is the 30 days
// before now.
func fetchWindow(now time.Time) (time.Time, time.Time, error) {
	end := now
	if pricesEnd != "" {
		t, err := time.Parse(dayLayout, pricesEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -30)
	if pricesStart != "" {
		t, err := time.Parse(dayLayout, pricesStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("--start must be before --end")
	}
	return start, end, nil
}

func runPricesImport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	path := priceFilePath()
	ix, err := prices.LoadCSV(path)
	if err != nil {
		return err
	}

	client, ps, err := openInfluxStore()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := ps.Write(ctx, ix.Records()); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	rt.logger.Info("prices imported", "path", path, "buckets", ix.Len(), "bucket", rt.cfg.Prices.Influx.Bucket)
	rt.out.Success("Imported " + strconv.Itoa(ix.Len()) + " hourly prices into InfluxDB")
	return nil
}
