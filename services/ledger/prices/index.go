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
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BucketSeconds is the width of one price bucket.
const BucketSeconds int64 = 3600

// Record is one hourly price bucket.
type Record struct {
	// Start is the bucket start in unix seconds.
	Start int64 `json:"start"`

	// Price is the average USD price of one ether during the bucket.
	Price decimal.Decimal `json:"price"`
}

// End returns the exclusive end of the bucket.
func (r Record) End() int64 {
	return r.Start + BucketSeconds
}

// Contains reports whether ts lies in [Start, End).
func (r Record) Contains(ts int64) bool {
	return ts >= r.Start && ts < r.End()
}

// Index answers price lookups over a sorted, non-overlapping series.
//
// Thread Safety: Index is immutable after construction and safe for
// concurrent use.
type Index struct {
	records []Record
}

// NewIndex builds an index from records in any order.
//
// Errors:
//
//	ErrEmptySeries - records is empty
//	ErrOverlappingBuckets - two records start less than BucketSeconds apart
func NewIndex(records []Record) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptySeries
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End() {
			return nil, fmt.Errorf("%w: buckets at %d and %d", ErrOverlappingBuckets, sorted[i-1].Start, sorted[i].Start)
		}
	}
	return &Index{records: sorted}, nil
}

// PriceAt returns the USD price of one ether at unix time ts.
//
// The bucket containing ts wins. A timestamp past every bucket resolves to
// the latest price. Anything else returns a *LookupError.
func (ix *Index) PriceAt(ts int64) (decimal.Decimal, error) {
	n := len(ix.records)
	// i is the last bucket starting at or before ts, or -1.
	i := sort.Search(n, func(k int) bool { return ix.records[k].Start > ts }) - 1

	if i >= 0 && ix.records[i].Contains(ts) {
		return ix.records[i].Price, nil
	}

	last := ix.records[n-1]
	if ts > last.Start {
		return last.Price, nil
	}

	return decimal.Zero, &LookupError{
		Timestamp:    ts,
		First:        ix.records[0].Start,
		Last:         last.Start,
		BeforeSeries: i < 0,
	}
}

// Len returns the number of buckets.
func (ix *Index) Len() int {
	return len(ix.records)
}

// First returns the earliest bucket.
func (ix *Index) First() Record {
	return ix.records[0]
}

// Last returns the latest bucket.
func (ix *Index) Last() Record {
	return ix.records[len(ix.records)-1]
}

// Records returns a copy of the sorted buckets.
func (ix *Index) Records() []Record {
	out := make([]Record, len(ix.records))
	copy(out, ix.records)
	return out
}
