// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prices provides the hourly USD price index.
//
// A series is a set of non-overlapping hourly buckets [start, start+3600),
// each carrying the average USD price of one ether during that hour. Lookups
// binary search the sorted buckets. Timestamps after the last bucket resolve
// to the latest price; timestamps before the first bucket, or in a gap
// between buckets, are reported as *LookupError.
//
// Series are read from CSV files or from an InfluxDB measurement.
package prices

import (
	"errors"
	"fmt"
)

// Sentinel errors for price operations.
var (
	// ErrEmptySeries is returned when building an index from no records.
	ErrEmptySeries = errors.New("price series is empty")

	// ErrOverlappingBuckets is returned when two records start less than one
	// bucket apart.
	ErrOverlappingBuckets = errors.New("price buckets overlap")

	// ErrPriceNotFound is returned when no bucket resolves a timestamp.
	ErrPriceNotFound = errors.New("no price for timestamp")

	// ErrMalformedRecord is returned for unparsable CSV rows or query rows.
	ErrMalformedRecord = errors.New("malformed price record")
)

// LookupError describes a timestamp the index cannot price.
type LookupError struct {
	// Timestamp is the unix time that was looked up.
	Timestamp int64

	// First is the start of the earliest bucket.
	First int64

	// Last is the start of the latest bucket.
	Last int64

	// BeforeSeries is true when Timestamp precedes the first bucket, false
	// when it falls into a gap between buckets.
	BeforeSeries bool
}

// Error implements error.
func (e *LookupError) Error() string {
	if e.BeforeSeries {
		return fmt.Sprintf("no price for timestamp %d: before first bucket at %d", e.Timestamp, e.First)
	}
	return fmt.Sprintf("no price for timestamp %d: falls between buckets in series [%d, %d]", e.Timestamp, e.First, e.Last)
}

// Unwrap returns ErrPriceNotFound.
func (e *LookupError) Unwrap() error {
	return ErrPriceNotFound
}
