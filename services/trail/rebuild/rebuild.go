// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rebuild owns the graph lifecycle.
//
// Rebuild is a pure function from configuration and sources to a fresh,
// fully derived graph. Nothing is shared with the previous graph, so a
// rebuild may run while readers use the old one. Live holds the current
// result and swaps new ones in atomically; a rebuild that was overtaken by
// a newer trigger is discarded instead of swapped. Watcher turns manifest
// file changes into throttled triggers.
package rebuild

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
	"github.com/AleutianAI/trailgraph/services/trail/sorter"
	"github.com/AleutianAI/trailgraph/services/trail/telemetry"
)

// ErrNilRegistry is returned when Input has no registry.
var ErrNilRegistry = errors.New("rebuild input has no registry")

// Input is everything a rebuild needs.
type Input struct {
	// Registry resolves field labels. Required.
	Registry *hierarchy.Registry

	// Rules are handed to the implied engine.
	Rules []implied.Rule

	// Sources produce explicit edges, collected in order.
	Sources []intake.Source

	// Walk holds the default traversal options for queries on the result.
	Walk graph.WalkOptions

	// Sort is the default edge sort for queries on the result.
	Sort sorter.Spec

	// BuildErrors are problems found before the rebuild, typically by
	// config compilation. They are carried into Result.Errors first.
	BuildErrors []intake.BuildError

	// GraphOptions configure the new graph.
	GraphOptions []graph.Option

	// Logger receives a summary line. Default: slog.Default()
	Logger *slog.Logger
}

// Result is one finished rebuild. It is never mutated after Rebuild
// returns.
type Result struct {
	// BuildID identifies this rebuild in logs and API responses.
	BuildID string `json:"build_id"`

	// Graph is the derived graph. Read only.
	Graph *graph.Graph `json:"-"`

	// Registry is the registry the graph was built with.
	Registry *hierarchy.Registry `json:"-"`

	// Walk and Sort are carried from Input.
	Walk graph.WalkOptions `json:"-"`
	Sort sorter.Spec       `json:"sort"`

	// Errors are every non-fatal problem, config problems first.
	Errors []intake.BuildError `json:"errors"`

	// Intake counts what the sources contributed.
	Intake intake.ApplyStats `json:"intake"`

	// Inference summarises the implied engine run.
	Inference implied.Report `json:"inference"`

	// Stats describes the final graph.
	Stats graph.Stats `json:"stats"`

	// BuiltAt is when the rebuild finished.
	BuiltAt time.Time `json:"built_at"`

	// Duration is the wall time of the rebuild.
	Duration time.Duration `json:"duration"`
}

// Rebuild produces a fresh graph.
//
// Description:
//
//	Collects batches from every source, applies them to a new graph, then
//	runs the implied engine over it. Per-document problems become
//	BuildErrors on the result; only a source that cannot be read at all
//	aborts. The caller decides whether to swap the result in.
//
// Inputs:
//
//	ctx - Cancels source collection. Inference, once started, runs to
//	      completion.
//	in - Registry, rules and sources.
//
// Outputs:
//
//	*Result - The new graph and its reports.
//	error - ErrNilRegistry, or intake.ErrSourceUnavailable wrapping the
//	        source failure.
//
// Thread Safety: Safe to call concurrently. Each call builds its own graph.
func Rebuild(ctx context.Context, in Input) (*Result, error) {
	began := time.Now()
	ctx, span := startRebuildSpan(ctx, len(in.Sources))
	defer span.End()

	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if in.Registry == nil {
		recordRebuild(ctx, outcomeFailed, time.Since(began), 0)
		telemetry.RecordError(span, ErrNilRegistry)
		return nil, ErrNilRegistry
	}

	batches, err := intake.CollectAll(ctx, in.Sources)
	if err != nil {
		recordRebuild(ctx, outcomeFailed, time.Since(began), 0)
		telemetry.RecordError(span, err)
		return nil, err
	}

	g := graph.New(in.GraphOptions...)
	stats, applyErrs := intake.Apply(g, in.Registry, batches)

	report := implied.New(implied.WithLogger(logger)).Run(ctx, g, in.Registry, in.Rules)

	errs := make([]intake.BuildError, 0, len(in.BuildErrors)+len(applyErrs))
	errs = append(errs, in.BuildErrors...)
	errs = append(errs, applyErrs...)

	res := &Result{
		BuildID:   uuid.NewString(),
		Graph:     g,
		Registry:  in.Registry,
		Walk:      in.Walk,
		Sort:      in.Sort,
		Errors:    errs,
		Intake:    stats,
		Inference: report,
		Stats:     g.Stats(),
		BuiltAt:   time.Now(),
	}
	res.Duration = res.BuiltAt.Sub(began)

	setRebuildSpanResult(span, res)
	recordRebuild(ctx, outcomeOK, res.Duration, len(errs))

	telemetry.LoggerWithTrace(ctx, logger).Info("rebuild complete",
		slog.String("build_id", res.BuildID),
		slog.Int("nodes", res.Stats.NodeCount),
		slog.Int("edges", res.Stats.EdgeCount),
		slog.Int("implied", report.Total()),
		slog.Int("rounds", len(report.Rounds)),
		slog.Int("errors", len(errs)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
