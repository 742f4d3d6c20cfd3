// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/ethgraph/pkg/validation"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"
)

// DefaultMeasurement is the measurement holding price points.
const DefaultMeasurement = "eth_prices"

// InfluxConfig names where a series lives.
type InfluxConfig struct {
	Bucket      string
	Measurement string
	Symbol      string
}

// InfluxStore reads and writes price series in InfluxDB.
type InfluxStore struct {
	WriteAPI api.WriteAPIBlocking
	QueryAPI api.QueryAPI

	bucket      string
	measurement string
	symbol      string
}

// rowSource is the subset of *api.QueryTableResult used for decoding.
type rowSource interface {
	Next() bool
	Record() *query.FluxRecord
	Err() error
}

// NewInfluxStore validates cfg and returns a store.
//
// Bucket, measurement and symbol are interpolated into Flux queries and are
// validated here to prevent Flux injection.
func NewInfluxStore(writeAPI api.WriteAPIBlocking, queryAPI api.QueryAPI, cfg InfluxConfig) (*InfluxStore, error) {
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if err := validation.ValidateIdentifier(cfg.Bucket); err != nil {
		return nil, fmt.Errorf("bucket: %w", err)
	}
	if err := validation.ValidateIdentifier(cfg.Measurement); err != nil {
		return nil, fmt.Errorf("measurement: %w", err)
	}
	symbol, err := validation.SanitizeSymbol(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	return &InfluxStore{
		WriteAPI:    writeAPI,
		QueryAPI:    queryAPI,
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		symbol:      symbol,
	}, nil
}

// Write stores records as points tagged with the store's symbol.
func (s *InfluxStore) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(records))
	for _, r := range records {
		price, _ := r.Price.Float64()
		points = append(points, influxdb2.NewPoint(
			s.measurement,
			map[string]string{"symbol": s.symbol},
			map[string]interface{}{"price": price},
			time.Unix(r.Start, 0).UTC(),
		))
	}
	if err := s.WriteAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d price points: %w", len(points), err)
	}
	return nil
}

// Query returns hourly mean prices in [start, stop).
func (s *InfluxStore) Query(ctx context.Context, start, stop time.Time) ([]Record, error) {
	flux := s.hourlyQuery(start, stop)
	result, err := s.QueryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	// Guard against nil result (can happen with empty query results)
	if result == nil {
		return nil, nil
	}
	defer result.Close()
	return decodeRows(result)
}

// LoadIndex queries [start, stop) and builds an index from the result.
func (s *InfluxStore) LoadIndex(ctx context.Context, start, stop time.Time) (*Index, error) {
	records, err := s.Query(ctx, start, stop)
	if err != nil {
		return nil, err
	}
	return NewIndex(records)
}

func (s *InfluxStore) hourlyQuery(start, stop time.Time) string {
	return fmt.Sprintf(`
        from(bucket: "%s")
          |> range(start: %s, stop: %s)
          |> filter(fn: (r) => r._measurement == "%s")
          |> filter(fn: (r) => r._field == "price")
          |> filter(fn: (r) => r.symbol == "%s")
          |> aggregateWindow(every: 1h, fn: mean, createEmpty: false, timeSrc: "_start")
          |> sort(columns: ["_time"], desc: false)
    `, s.bucket, start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339), s.measurement, s.symbol)
}

func decodeRows(rows rowSource) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec := rows.Record()
		var price decimal.Decimal
		switch v := rec.Value().(type) {
		case float64:
			price = decimal.NewFromFloat(v)
		case int64:
			price = decimal.NewFromInt(v)
		default:
			return nil, fmt.Errorf("%w: value %v at %s", ErrMalformedRecord, v, rec.Time())
		}
		records = append(records, Record{Start: rec.Time().Unix(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query result error: %w", err)
	}
	return records, nil
}
