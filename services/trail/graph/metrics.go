// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("trailgraph.graph")
	meter  = otel.Meter("trailgraph.graph")
)

// Metrics for traversal operations.
var (
	walkLatency    metric.Float64Histogram
	walkTotal      metric.Int64Counter
	walkTruncated  metric.Int64Counter
	walkPathCounts metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		walkLatency, err = meter.Float64Histogram(
			"trail_walk_duration_seconds",
			metric.WithDescription("Duration of graph traversals"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		walkTotal, err = meter.Int64Counter(
			"trail_walk_total",
			metric.WithDescription("Total number of graph traversals"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		walkTruncated, err = meter.Int64Counter(
			"trail_walk_truncated_total",
			metric.WithDescription("Traversals that hit a step ceiling or were cancelled"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		walkPathCounts, err = meter.Int64Histogram(
			"trail_walk_paths",
			metric.WithDescription("Number of paths emitted per traversal"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordWalkMetrics records metrics for one traversal.
func recordWalkMetrics(ctx context.Context, strategy Strategy, duration time.Duration, paths int, truncated bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("strategy", strategy.String()))

	walkLatency.Record(ctx, duration.Seconds(), attrs)
	walkTotal.Add(ctx, 1, attrs)
	walkPathCounts.Record(ctx, int64(paths), attrs)
	if truncated {
		walkTruncated.Add(ctx, 1, attrs)
	}
}

// startWalkSpan creates a span for a traversal.
func startWalkSpan(ctx context.Context, strategy Strategy, start string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph."+strategy.String(),
		trace.WithAttributes(
			attribute.String("walk.strategy", strategy.String()),
			attribute.String("walk.start", start),
		),
	)
}
