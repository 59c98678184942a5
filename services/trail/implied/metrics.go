// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package implied

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("trailgraph.implied")
	meter  = otel.Meter("trailgraph.implied")
)

var (
	impliedEdges metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		impliedEdges, metricsErr = meter.Int64Counter(
			"trail_implied_edges_total",
			metric.WithDescription("Edges added by inference rules"),
		)
	})
	return metricsErr
}

// recordImpliedEdges records edges added by one rule in one round.
func recordImpliedEdges(ctx context.Context, kind string, round, n int) {
	if n == 0 {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	impliedEdges.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("round", round),
	))
}

func startRunSpan(ctx context.Context, ruleCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Run",
		trace.WithAttributes(attribute.Int("implied.rule_count", ruleCount)),
	)
}

func setRunSpanResult(span trace.Span, rounds, added int, fixedPoint bool) {
	span.SetAttributes(
		attribute.Int("implied.rounds", rounds),
		attribute.Int("implied.added", added),
		attribute.Bool("implied.fixed_point", fixedPoint),
	)
}

func startRoundSpan(ctx context.Context, round int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.round",
		trace.WithAttributes(attribute.Int("implied.round", round)),
	)
}

func setRoundSpanResult(span trace.Span, candidates, added int) {
	span.SetAttributes(
		attribute.Int("implied.candidates", candidates),
		attribute.Int("implied.added", added),
	)
}
