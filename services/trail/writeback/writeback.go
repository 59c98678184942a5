// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package writeback persists derived edges next to the notes they belong to.
//
// The graph itself is never persisted. Write-back exports the implied out
// edges of each resolved note through a Sink, so tools that only read note
// files can see them. One note failing does not stop the others.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
)

// DefaultConcurrency is the number of notes written at once.
const DefaultConcurrency = 8

// EdgeRecord is one exported edge.
type EdgeRecord struct {
	Field  string `yaml:"field" json:"field"`
	Target string `yaml:"target" json:"target"`
	Kind   string `yaml:"kind" json:"kind"`
	Round  int    `yaml:"round" json:"round"`
}

// Note is the export for one node.
type Note struct {
	ID    string       `yaml:"note" json:"note"`
	Edges []EdgeRecord `yaml:"edges" json:"edges"`
}

// Sink stores one note's export.
type Sink interface {
	Write(ctx context.Context, note Note) error
}

// Failure is a note that could not be written.
type Failure struct {
	ID  string
	Err error
}

// Report summarises a write-back run.
type Report struct {
	// Written counts notes the sink accepted.
	Written int

	// Skipped counts unresolved notes and notes with nothing to export.
	Skipped int

	// Failures lists notes the sink rejected, in graph order.
	Failures []Failure
}

// Err joins every failure, or returns nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s: %w", f.ID, f.Err)
	}
	return errors.Join(errs...)
}

// Options configures Run.
type Options struct {
	// Concurrency bounds parallel writes. Default: 8
	Concurrency int

	// Filter selects the edges to export. Default: implied edges only.
	Filter graph.EdgeFilter

	// Logger. Default: slog.Default()
	Logger *slog.Logger
}

// Notes builds the export for every resolved node of g, in graph order.
// Nodes with no selected out edges are left out.
func Notes(g *graph.Graph, filter graph.EdgeFilter) (notes []Note, skipped int) {
	if filter == nil {
		filter = impliedOnly
	}
	for _, n := range g.Nodes() {
		if !n.Resolved {
			skipped++
			continue
		}
		edges := g.FilterOutEdges(n.ID, filter)
		if len(edges) == 0 {
			skipped++
			continue
		}
		note := Note{ID: n.ID, Edges: make([]EdgeRecord, len(edges))}
		for i, e := range edges {
			note.Edges[i] = EdgeRecord{Field: e.Field, Target: e.Target, Kind: e.Kind(), Round: e.Round()}
		}
		notes = append(notes, note)
	}
	return notes, skipped
}

func impliedOnly(e graph.Edge) bool {
	return !e.IsExplicit()
}

// Run writes every exportable note of g to sink.
//
// Description:
//
//	Notes are written concurrently, at most Concurrency at a time. A sink
//	error is recorded and the batch continues. If ctx is cancelled, notes
//	not yet started are recorded as failures with the context error.
//
// Thread Safety: g must not be mutated during Run. sink must be safe for
// concurrent use.
func Run(ctx context.Context, g *graph.Graph, sink Sink, opts Options) Report {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	notes, skipped := Notes(g, opts.Filter)
	report := Report{Skipped: skipped}
	errs := make([]error, len(notes))

	var (
		eg      errgroup.Group
		mu      sync.Mutex
		written int
	)
	eg.SetLimit(opts.Concurrency)
	for i, note := range notes {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(notes); j++ {
				errs[j] = err
			}
			break
		}
		eg.Go(func() error {
			if err := sink.Write(ctx, note); err != nil {
				errs[i] = err
				return nil
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	report.Written = written
	for i, err := range errs {
		if err != nil {
			report.Failures = append(report.Failures, Failure{ID: notes[i].ID, Err: err})
		}
	}

	opts.Logger.Info("write-back complete",
		slog.Int("written", report.Written),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", len(report.Failures)),
	)
	return report
}
