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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	addressesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethgraph",
		Subsystem: "crawler",
		Name:      "addresses_total",
		Help:      "Addresses expanded by result",
	}, []string{"result"})

	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethgraph",
		Subsystem: "crawler",
		Name:      "transactions_total",
		Help:      "Fetched transactions by outcome (accepted or reject reason)",
	}, []string{"outcome"})

	expandDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ethgraph",
		Subsystem: "crawler",
		Name:      "expand_duration_seconds",
		Help:      "Time to fetch and fold one address",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethgraph",
		Subsystem: "crawler",
		Name:      "graph_edges",
		Help:      "Edges in the graph of the running session",
	})

	sinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethgraph",
		Subsystem: "crawler",
		Name:      "side_effect_errors_total",
		Help:      "Edge sink and checkpoint failures",
	}, []string{"kind"})
)
