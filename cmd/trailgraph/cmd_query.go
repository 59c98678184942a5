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
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/trailgraph/pkg/ux"
	"github.com/AleutianAI/trailgraph/services/trail"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// index
	indexDirection    string
	indexLinkStyle    string
	indexAliases      bool
	indexExplicitOnly bool

	// traverse
	traverseStrategy string
	traverseFields   []string
	traverseMaxSteps int
	traversePolicy   string
	traverseStopAt   []string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the graph once and report statistics and build errors",
	Long: `Collects every source, derives implied edges and prints a summary.

Build errors (unknown fields, malformed rules, unreadable notes) are listed
but never fail the command. Only a source that cannot be read at all does.

Examples:
  trailgraph build -m vault/
  trailgraph build -c trailgraph.yaml --json
  trailgraph build -m vault/ --jq '.errors[].code'`,
	Args: cobra.NoArgs,
	RunE: withApp(runBuild),
}

var neighboursCmd = &cobra.Command{
	Use:     "neighbours ID",
	Aliases: []string{"neighbors"},
	Short:   "List the out-edges of a note grouped by direction",
	Args:    cobra.ExactArgs(1),
	RunE:    withApp(runNeighbours),
}

var trailCmd = &cobra.Command{
	Use:   "trail ID",
	Short: "Show every route from a note up to its roots",
	Long: `Walks breadth-first along every up label until it reaches a note with
no parent. Each line is one route, nearest parent first.

Examples:
  trailgraph trail notes/kid.md -m vault/`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runTrail),
}

var indexCmd = &cobra.Command{
	Use:   "index ID",
	Short: "Render the nested list reachable from a note",
	Long: `Walks depth-first along every label of one direction and renders the
paths as an indented list.

Examples:
  trailgraph index Home.md -m vault/
  trailgraph index notes/kid.md --direction up --link-style wiki`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runIndex),
}

var traverseCmd = &cobra.Command{
	Use:   "traverse ID",
	Short: "Enumerate bounded paths from a note",
	Long: `Runs a depth-first or breadth-first multi-path walk. Cycles are cut by
the revisit policy and the step ceiling; a truncated walk still prints the
paths found so far.

Examples:
  trailgraph traverse Home.md --fields down
  trailgraph traverse a.md --strategy bfs --fields up,same --max-steps 500`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runTraverse),
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	indexCmd.Flags().StringVar(&indexDirection, "direction", string(hierarchy.Down),
		"Direction to follow: up, same, down, next, prev")
	indexCmd.Flags().StringVar(&indexLinkStyle, "link-style", "",
		"Link style: plain, wiki, markdown (default: from config)")
	indexCmd.Flags().BoolVar(&indexAliases, "aliases", false,
		"Append each note's first alias")
	indexCmd.Flags().BoolVar(&indexExplicitOnly, "explicit-only", false,
		"Ignore implied edges")

	traverseCmd.Flags().StringVar(&traverseStrategy, "strategy", "dfs",
		"Frontier discipline: dfs or bfs")
	traverseCmd.Flags().StringSliceVar(&traverseFields, "fields", nil,
		"Labels, group names or directions to follow (default: all)")
	traverseCmd.Flags().IntVar(&traverseMaxSteps, "max-steps", 0,
		"Step ceiling (0 = from config)")
	traverseCmd.Flags().StringVar(&traversePolicy, "policy", "",
		"Revisit policy: global, per_path (default: from config)")
	traverseCmd.Flags().StringSliceVar(&traverseStopAt, "stop-at", nil,
		"End paths at these notes")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// newService builds the query service for one invocation.
func newService(a *app) (*trail.Service, error) {
	live, err := a.live()
	if err != nil {
		return nil, err
	}
	return trail.NewService(live,
		trail.WithDisplay(a.cfg.Display),
		trail.WithServiceLogger(a.logger),
	)
}

func runBuild(ctx context.Context, a *app, _ []string) error {
	res, err := a.build(ctx)
	if err != nil {
		return err
	}
	return emit(ctx, a, res, func(p *ux.Printer) {
		p.Title("Build " + res.BuildID)
		p.KeyValues([][2]string{
			{"nodes", strconv.Itoa(res.Stats.NodeCount)},
			{"resolved", strconv.Itoa(res.Stats.ResolvedNodes)},
			{"edges", strconv.Itoa(res.Stats.EdgeCount)},
			{"explicit", strconv.Itoa(res.Stats.ExplicitEdges)},
			{"implied", strconv.Itoa(res.Inference.Total())},
			{"rounds", strconv.Itoa(len(res.Inference.Rounds))},
			{"duration", res.Duration.String()},
		})

		kinds := make([]string, 0, len(res.Stats.ImpliedByKind))
		for k := range res.Stats.ImpliedByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		if len(kinds) > 0 {
			rows := make([][]string, len(kinds))
			for i, k := range kinds {
				rows[i] = []string{k, strconv.Itoa(res.Stats.ImpliedByKind[k])}
			}
			p.Table([]string{"rule", "edges"}, rows)
		}
		for _, name := range res.Inference.Inert {
			p.Warning(fmt.Sprintf("rule %s references labels no hierarchy defines", name))
		}

		if len(res.Errors) == 0 {
			p.Success("no build errors")
			return
		}
		p.Warning(fmt.Sprintf("%d build errors", len(res.Errors)))
		rows := make([][]string, len(res.Errors))
		for i, be := range res.Errors {
			rows[i] = []string{be.Path, be.Code, be.Message}
		}
		p.Table([]string{"path", "code", "message"}, rows)
	})
}

func runNeighbours(ctx context.Context, a *app, args []string) error {
	svc, err := newService(a)
	if err != nil {
		return err
	}
	resp, err := svc.Neighbours(ctx, args[0])
	if err != nil {
		return err
	}
	return emit(ctx, a, resp, func(p *ux.Printer) {
		p.Title(resp.Node.ID)
		var rows [][]string
		for _, dir := range hierarchy.Directions {
			for _, e := range resp.Neighbours[dir.String()] {
				prov := "explicit:" + e.Kind
				if !e.Explicit {
					prov = fmt.Sprintf("implied:%s@%d", e.Kind, e.Round)
				}
				rows = append(rows, []string{dir.String(), e.Field, e.Target, prov})
			}
		}
		if len(rows) == 0 {
			p.Muted("no out-edges")
			return
		}
		p.Table([]string{"direction", "field", "target", "provenance"}, rows)
	})
}

func runTrail(ctx context.Context, a *app, args []string) error {
	svc, err := newService(a)
	if err != nil {
		return err
	}
	resp, err := svc.Trail(ctx, args[0])
	if err != nil {
		return err
	}
	return emit(ctx, a, resp, func(p *ux.Printer) {
		if len(resp.Trails) == 0 {
			p.Muted(resp.ID + " has no parents")
			return
		}
		for _, t := range resp.Trails {
			p.Trail(append([]string{resp.ID}, t...))
		}
		if resp.Truncated {
			p.Warning("trail truncated by the step ceiling")
		}
	})
}

func runIndex(ctx context.Context, a *app, args []string) error {
	svc, err := newService(a)
	if err != nil {
		return err
	}
	req := trail.IndexRequest{
		ID:           args[0],
		Direction:    indexDirection,
		LinkStyle:    indexLinkStyle,
		ExplicitOnly: indexExplicitOnly,
	}
	if indexAliases {
		req.ShowAliases = &indexAliases
	}
	resp, err := svc.Index(ctx, req)
	if err != nil {
		return err
	}
	return emit(ctx, a, resp, func(p *ux.Printer) {
		p.Index(resp.Text)
		if resp.Truncated {
			a.errOut.Warning("index truncated by the step ceiling")
		}
	})
}

func runTraverse(ctx context.Context, a *app, args []string) error {
	svc, err := newService(a)
	if err != nil {
		return err
	}
	resp, err := svc.Traverse(ctx, trail.TraverseRequest{
		Start:    args[0],
		Strategy: traverseStrategy,
		Fields:   traverseFields,
		MaxSteps: traverseMaxSteps,
		Policy:   traversePolicy,
		StopAt:   traverseStopAt,
	})
	if err != nil {
		return err
	}
	return emit(ctx, a, resp, func(p *ux.Printer) {
		for _, path := range resp.Paths {
			p.Trail(append([]string{resp.Start}, path...))
		}
		p.Muted(fmt.Sprintf("%d paths, %d steps", len(resp.Paths), resp.Steps))
		if resp.Truncated {
			a.errOut.Warning("walk truncated by the step ceiling")
		}
	})
}
