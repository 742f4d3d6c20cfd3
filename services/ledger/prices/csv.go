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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header names recognized for the two CSV columns, lower-cased.
var (
	startColumns = []string{"period_start", "start", "timestamp", "time", "unix", "date"}
	priceColumns = []string{"average_price", "avg_price", "price", "average", "avg", "price_usd", "mean"}
)

// ReadCSV parses hourly price records.
//
// The first two columns are bucket start and price unless a header row names
// them (see startColumns and priceColumns). A header row is detected when its
// first field is not a timestamp. Bucket starts are unix seconds or RFC 3339
// times. Blank lines are skipped; other columns are ignored.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	startCol, priceCol := 0, 1
	var records []Record
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if line == 1 {
			if _, err := parseStart(row[0]); err != nil {
				startCol, priceCol = headerColumns(row)
				continue
			}
		}

		rec, err := parseRow(row, startCol, priceCol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadCSV reads a CSV file and builds an index from it.
func LoadCSV(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price series %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read price series %s: %w", path, err)
	}
	ix, err := NewIndex(records)
	if err != nil {
		return nil, fmt.Errorf("price series %s: %w", path, err)
	}
	return ix, nil
}

func headerColumns(header []string) (int, int) {
	startCol, priceCol := 0, 1
	lookup := func(names []string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, name := range names {
				if h == name {
					return i
				}
			}
		}
		return -1
	}
	if i := lookup(startColumns); i >= 0 {
		startCol = i
	}
	if i := lookup(priceColumns); i >= 0 {
		priceCol = i
	}
	return startCol, priceCol
}

func parseRow(row []string, startCol, priceCol int) (Record, error) {
	if startCol >= len(row) || priceCol >= len(row) {
		return Record{}, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(row))
	}
	start, err := parseStart(row[startCol])
	if err != nil {
		return Record{}, fmt.Errorf("%w: start %q", ErrMalformedRecord, row[startCol])
	}
	price, err := decimal.NewFromString(strings.TrimSpace(row[priceCol]))
	if err != nil {
		return Record{}, fmt.Errorf("%w: price %q", ErrMalformedRecord, row[priceCol])
	}
	if price.IsNegative() {
		return Record{}, fmt.Errorf("%w: negative price %s", ErrMalformedRecord, price)
	}
	return Record{Start: start, Price: price}, nil
}

func parseStart(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// WriteCSV writes records with a period_start,average_price header.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"period_start", "average_price"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{strconv.FormatInt(r.Start, 10), r.Price.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
