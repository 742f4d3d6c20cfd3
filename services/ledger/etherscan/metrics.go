// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package etherscan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts HTTP attempts by outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethgraph",
		Subsystem: "etherscan",
		Name:      "requests_total",
		Help:      "Etherscan txlist attempts by result",
	}, []string{"result"})

	// requestDuration tracks single attempt latency, limiter wait excluded.
	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ethgraph",
		Subsystem: "etherscan",
		Name:      "request_duration_seconds",
		Help:      "Etherscan txlist attempt latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	// fetchAttempts tracks attempts needed per address.
	fetchAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ethgraph",
		Subsystem: "etherscan",
		Name:      "fetch_attempts",
		Help:      "Attempts used per address fetch",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethgraph",
		Subsystem: "etherscan",
		Name:      "circuit_state",
		Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)
