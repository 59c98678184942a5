// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("trailgraph.rebuild")
	meter  = otel.Meter("trailgraph.rebuild")
)

// Rebuild outcomes.
const (
	outcomeOK         = "ok"
	outcomeFailed     = "failed"
	outcomeSuperseded = "superseded"
)

var (
	rebuildLatency metric.Float64Histogram
	rebuildTotal   metric.Int64Counter
	buildErrors    metric.Int64Counter
	swapsTotal     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		rebuildLatency, err = meter.Float64Histogram(
			"trail_rebuild_duration_seconds",
			metric.WithDescription("Duration of graph rebuilds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rebuildTotal, err = meter.Int64Counter(
			"trail_rebuilds_total",
			metric.WithDescription("Rebuilds by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildErrors, err = meter.Int64Counter(
			"trail_build_errors_total",
			metric.WithDescription("Non-fatal build errors reported by rebuilds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		swapsTotal, err = meter.Int64Counter(
			"trail_graph_swaps_total",
			metric.WithDescription("Rebuild results swapped in or discarded"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordRebuild(ctx context.Context, outcome string, d time.Duration, errs int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	rebuildLatency.Record(ctx, d.Seconds(), attrs)
	rebuildTotal.Add(ctx, 1, attrs)
	if errs > 0 {
		buildErrors.Add(ctx, int64(errs))
	}
}

func recordSwap(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	swapsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func startRebuildSpan(ctx context.Context, sources int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "rebuild.Rebuild",
		trace.WithAttributes(attribute.Int("rebuild.sources", sources)),
	)
}

func setRebuildSpanResult(span trace.Span, r *Result) {
	span.SetAttributes(
		attribute.String("rebuild.build_id", r.BuildID),
		attribute.Int("rebuild.nodes", r.Stats.NodeCount),
		attribute.Int("rebuild.edges", r.Stats.EdgeCount),
		attribute.Int("rebuild.errors", len(r.Errors)),
	)
}
