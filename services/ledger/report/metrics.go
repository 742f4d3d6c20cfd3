// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package report

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("ethgraph.report")

var (
	buildDuration metric.Float64Histogram
	buildsTotal   metric.Int64Counter
	sectionEdges  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildDuration, err = meter.Float64Histogram(
			"report_build_duration_seconds",
			metric.WithDescription("Time to value a graph and assemble its report"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildsTotal, err = meter.Int64Counter(
			"report_builds_total",
			metric.WithDescription("Reports built by success"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sectionEdges, err = meter.Int64Histogram(
			"report_section_edges",
			metric.WithDescription("Edges per report section"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuild records one Build call. r is nil when the build failed.
func recordBuild(ctx context.Context, d time.Duration, r *Report, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	buildDuration.Record(ctx, d.Seconds(), attrs)
	buildsTotal.Add(ctx, 1, attrs)
	if r == nil {
		return
	}
	for _, s := range r.Sections {
		sectionEdges.Record(ctx, int64(s.Edges), metric.WithAttributes(
			attribute.String("section", s.Name),
		))
	}
}
