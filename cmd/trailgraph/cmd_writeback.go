// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/trailgraph/pkg/ux"
	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/writeback"
)

var (
	writebackOut         string
	writebackConcurrency int
	writebackAll         bool
)

var errNoWritebackDir = errors.New("no output directory: pass --out or set writeback.dir")

var writebackCmd = &cobra.Command{
	Use:   "writeback",
	Short: "Write each note's implied edges to a YAML sidecar",
	Long: `Builds the graph and writes <out>/<note>.implied.yaml for every resolved
note that has implied out-edges. A note that fails to write is reported and
the rest continue; the command exits non-zero if any failed.

Examples:
  trailgraph writeback -m vault/ --out .trailgraph/implied
  trailgraph writeback -m vault/ --out sidecars --all`,
	Args: cobra.NoArgs,
	RunE: withApp(runWriteback),
}

func init() {
	writebackCmd.Flags().StringVarP(&writebackOut, "out", "o", "",
		"Output directory (default: writeback.dir from config)")
	writebackCmd.Flags().IntVar(&writebackConcurrency, "concurrency", 0,
		"Parallel writes (0 = from config)")
	writebackCmd.Flags().BoolVar(&writebackAll, "all", false,
		"Export explicit edges too")
}

// writebackSummary is the JSON form of a write-back report.
type writebackSummary struct {
	Dir      string            `json:"dir"`
	BuildID  string            `json:"build_id"`
	Written  int               `json:"written"`
	Skipped  int               `json:"skipped"`
	Failures map[string]string `json:"failures,omitempty"`
}

func runWriteback(ctx context.Context, a *app, _ []string) error {
	dir := writebackOut
	if dir == "" {
		dir = a.cfg.Writeback.Dir
	}
	if dir == "" {
		return errNoWritebackDir
	}
	concurrency := a.cfg.Writeback.Concurrency
	if writebackConcurrency > 0 {
		concurrency = writebackConcurrency
	}

	res, err := a.build(ctx)
	if err != nil {
		return err
	}

	opts := writeback.Options{Concurrency: concurrency, Logger: a.logger}
	if writebackAll {
		opts.Filter = graph.EdgeFilter(func(graph.Edge) bool { return true })
	}
	report := writeback.Run(ctx, res.Graph, writeback.DirSink{Dir: dir}, opts)

	summary := writebackSummary{Dir: dir, BuildID: res.BuildID, Written: report.Written, Skipped: report.Skipped}
	if len(report.Failures) > 0 {
		summary.Failures = make(map[string]string, len(report.Failures))
		for _, f := range report.Failures {
			summary.Failures[f.ID] = f.Err.Error()
		}
	}

	if err := emit(ctx, a, summary, func(p *ux.Printer) {
		p.KeyValues([][2]string{
			{"dir", dir},
			{"written", strconv.Itoa(report.Written)},
			{"skipped", strconv.Itoa(report.Skipped)},
			{"failed", strconv.Itoa(len(report.Failures))},
		})
		for _, f := range report.Failures {
			p.Error(fmt.Sprintf("%s: %v", f.ID, f.Err))
		}
	}); err != nil {
		return err
	}
	return report.Err()
}
