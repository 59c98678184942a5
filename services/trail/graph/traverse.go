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
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Traversal limits.
const (
	// DefaultMaxSteps is the default number of frontier expansions per walk.
	DefaultMaxSteps = 10_000

	// DefaultMaxRevisits is the default number of times one node may be
	// entered across all branches under the Global policy.
	DefaultMaxRevisits = 5

	// contextCheckInterval is how many steps pass between ctx checks.
	contextCheckInterval = 100
)

// Strategy is the frontier discipline of a walk.
type Strategy int

const (
	// DFS expands the most recently discovered path first.
	DFS Strategy = iota

	// BFS expands the oldest discovered path first.
	BFS
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case DFS:
		return "dfs"
	case BFS:
		return "bfs"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// RevisitPolicy decides when a walk may enter a node again.
type RevisitPolicy int

const (
	// PolicyDefault uses Global for DFS and PerPath for BFS.
	PolicyDefault RevisitPolicy = iota

	// PolicyGlobal lets a node be entered at most MaxRevisits times across
	// every branch of the walk. Cheap, but approximate: a long legitimate
	// path may be cut short and a cycle may be followed a few times.
	PolicyGlobal

	// PolicyPerPath rejects an edge whose target is already on the current
	// path. Exact cycle detection; the step ceiling still bounds the walk.
	PolicyPerPath
)

// String returns the policy name.
func (p RevisitPolicy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyGlobal:
		return "global"
	case PolicyPerPath:
		return "per_path"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseRevisitPolicy parses "global", "per_path" or "" (default).
func ParseRevisitPolicy(s string) (RevisitPolicy, error) {
	switch s {
	case "", "default":
		return PolicyDefault, nil
	case "global":
		return PolicyGlobal, nil
	case "per_path", "per-path":
		return PolicyPerPath, nil
	default:
		return PolicyDefault, fmt.Errorf("unknown revisit policy %q", s)
	}
}

// WalkOptions configures a traversal.
type WalkOptions struct {
	// MaxSteps bounds the number of frontier expansions. Default: 10,000
	MaxSteps int

	// MaxRevisits bounds node entries under PolicyGlobal. Default: 5
	MaxRevisits int

	// Policy selects the revisit guard.
	Policy RevisitPolicy

	// Filter restricts which out-edges are followed. Nil follows all.
	Filter EdgeFilter

	// Compare orders sibling edges before they are expanded. Nil keeps
	// insertion order.
	Compare func(a, b Edge) int

	// Stop ends a path at a node that satisfies it. The start node is
	// never tested.
	Stop func(id string) bool

	// inspect sees every candidate edge with the node the current path
	// came from. Returning true skips the edge. Used by RemoveCycles.
	inspect func(prev string, e Edge) bool
}

// DefaultWalkOptions returns the default traversal limits.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		MaxSteps:    DefaultMaxSteps,
		MaxRevisits: DefaultMaxRevisits,
	}
}

// WalkOption is a functional option for configuring a traversal.
type WalkOption func(*WalkOptions)

// WithMaxSteps sets the step ceiling. Values < 1 keep the default.
func WithMaxSteps(n int) WalkOption {
	return func(o *WalkOptions) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithMaxRevisits sets the global revisit cap. Values < 1 keep the default.
func WithMaxRevisits(n int) WalkOption {
	return func(o *WalkOptions) {
		if n > 0 {
			o.MaxRevisits = n
		}
	}
}

// WithPolicy sets the revisit policy.
func WithPolicy(p RevisitPolicy) WalkOption {
	return func(o *WalkOptions) {
		o.Policy = p
	}
}

// WithFilter restricts the walk to edges passing f.
func WithFilter(f EdgeFilter) WalkOption {
	return func(o *WalkOptions) {
		o.Filter = f
	}
}

// WithCompare orders sibling edges with cmp.
func WithCompare(cmp func(a, b Edge) int) WalkOption {
	return func(o *WalkOptions) {
		o.Compare = cmp
	}
}

// WithStop ends paths at nodes satisfying stop.
func WithStop(stop func(id string) bool) WalkOption {
	return func(o *WalkOptions) {
		o.Stop = stop
	}
}

// WithWalkOptions replaces the options wholesale. Later options still apply.
func WithWalkOptions(w WalkOptions) WalkOption {
	return func(o *WalkOptions) {
		*o = w
		if o.MaxSteps < 1 {
			o.MaxSteps = DefaultMaxSteps
		}
		if o.MaxRevisits < 1 {
			o.MaxRevisits = DefaultMaxRevisits
		}
	}
}

func applyWalkOptions(opts []WalkOption) WalkOptions {
	options := DefaultWalkOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Path is a sequence of edges leaving Start.
type Path struct {
	// Start is the node the walk began at.
	Start string

	// Edges are the edges followed, in order.
	Edges []Edge
}

// Len returns the number of edges in the path.
func (p Path) Len() int {
	return len(p.Edges)
}

// End returns the last node of the path, or Start for an empty path.
func (p Path) End() string {
	if len(p.Edges) == 0 {
		return p.Start
	}
	return p.Edges[len(p.Edges)-1].Target
}

// Targets returns the nodes reached by the path, excluding Start.
func (p Path) Targets() []string {
	out := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		out[i] = e.Target
	}
	return out
}

// Nodes returns Start followed by Targets.
func (p Path) Nodes() []string {
	return append([]string{p.Start}, p.Targets()...)
}

// PathSet is the result of a multi-path traversal.
type PathSet struct {
	// Start is the node the walk began at.
	Start string

	// Strategy is the frontier discipline used.
	Strategy Strategy

	// Paths are the emitted paths in emission order.
	Paths []Path

	// Steps is the number of frontier expansions performed.
	Steps int

	// Truncated is true if the step ceiling was hit or ctx was cancelled.
	// The in-progress path is emitted before returning.
	Truncated bool
}

// NodeLists returns each path as a node list excluding the start.
func (ps *PathSet) NodeLists() [][]string {
	out := make([][]string, len(ps.Paths))
	for i, p := range ps.Paths {
		out[i] = p.Targets()
	}
	return out
}

// step is one link of a persistent path. Paths share prefixes so the
// frontier never copies edge slices.
type step struct {
	edge   Edge
	parent *step
	depth  int
}

func (s *step) node(start string) string {
	if s == nil {
		return start
	}
	return s.edge.Target
}

func (s *step) prev() string {
	if s == nil {
		return ""
	}
	return s.edge.Source
}

func (s *step) contains(start, id string) bool {
	if id == start {
		return true
	}
	for cur := s; cur != nil; cur = cur.parent {
		if cur.edge.Target == id {
			return true
		}
	}
	return false
}

func (s *step) path(start string) Path {
	if s == nil {
		return Path{Start: start}
	}
	edges := make([]Edge, s.depth)
	for cur := s; cur != nil; cur = cur.parent {
		edges[cur.depth-1] = cur.edge
	}
	return Path{Start: start, Edges: edges}
}

// DFSAllPaths enumerates paths from start depth first.
//
// Description:
//
//	Follows out-edges passing the filter. A path ends when no edge can be
//	followed (or Stop matches); such terminal paths are emitted. With the
//	default Global policy each node may be entered at most MaxRevisits times
//	across all branches, which bounds exploration on cyclic graphs.
//	PolicyPerPath switches to exact per-path cycle detection.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 steps)
//	start - Node to walk from
//	opts - Walk options
//
// Outputs:
//
//	*PathSet - Emitted paths. Truncated is set when a ceiling was hit.
//	error - ErrNodeNotFound if start is not in the graph
func (g *Graph) DFSAllPaths(ctx context.Context, start string, opts ...WalkOption) (*PathSet, error) {
	return g.walkWithTelemetry(ctx, start, DFS, applyWalkOptions(opts))
}

// BFSAllPaths enumerates paths from start breadth first.
//
// Description:
//
//	Unless a policy is given, only revisits within the same path are
//	prevented; there is no cross-path cap. Paths end at nodes without
//	followable edges or at nodes satisfying Stop, which makes this the
//	primitive for trails toward designated roots. Use PathSet.NodeLists to
//	get node lists without the start node.
//
// Outputs:
//
//	*PathSet - Emitted paths. Truncated is set when a ceiling was hit.
//	error - ErrNodeNotFound if start is not in the graph
func (g *Graph) BFSAllPaths(ctx context.Context, start string, opts ...WalkOption) (*PathSet, error) {
	return g.walkWithTelemetry(ctx, start, BFS, applyWalkOptions(opts))
}

func (g *Graph) walkWithTelemetry(ctx context.Context, start string, strategy Strategy, options WalkOptions) (*PathSet, error) {
	ctx, span := startWalkSpan(ctx, strategy, start)
	defer span.End()
	began := time.Now()

	if !g.HasNode(start) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, start)
	}

	result := g.walk(ctx, start, strategy, options)

	span.SetAttributes(
		attribute.Int("walk.paths", len(result.Paths)),
		attribute.Int("walk.steps", result.Steps),
		attribute.Bool("walk.truncated", result.Truncated),
	)
	recordWalkMetrics(ctx, strategy, time.Since(began), len(result.Paths), result.Truncated)
	return result, nil
}

// walk is the single traversal primitive behind DFS, BFS and RemoveCycles.
func (g *Graph) walk(ctx context.Context, start string, strategy Strategy, options WalkOptions) *PathSet {
	policy := options.Policy
	if policy == PolicyDefault {
		policy = PolicyGlobal
		if strategy == BFS {
			policy = PolicyPerPath
		}
	}

	result := &PathSet{Start: start, Strategy: strategy}
	emit := func(s *step) {
		if s == nil {
			return
		}
		result.Paths = append(result.Paths, s.path(start))
	}

	visits := map[string]int{start: 1}
	frontier := []*step{nil}

	for len(frontier) > 0 {
		var cur *step
		if strategy == BFS {
			cur = frontier[0]
			frontier = frontier[1:]
		} else {
			cur = frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
		}

		if result.Steps >= options.MaxSteps {
			result.Truncated = true
			emit(cur)
			break
		}
		result.Steps++
		if result.Steps%contextCheckInterval == 0 {
			if ctx.Err() != nil {
				result.Truncated = true
				emit(cur)
				break
			}
		}

		node := cur.node(start)
		if cur != nil && options.Stop != nil && options.Stop(node) {
			emit(cur)
			continue
		}

		candidates := g.FilterOutEdges(node, options.Filter)
		if options.Compare != nil {
			slices.SortStableFunc(candidates, options.Compare)
		}

		prev := cur.prev()
		children := make([]*step, 0, len(candidates))
		for _, e := range candidates {
			if options.inspect != nil && options.inspect(prev, e) {
				continue
			}
			switch policy {
			case PolicyPerPath:
				if cur.contains(start, e.Target) {
					continue
				}
			default:
				if visits[e.Target] >= options.MaxRevisits {
					continue
				}
				visits[e.Target]++
			}
			depth := 1
			if cur != nil {
				depth = cur.depth + 1
			}
			children = append(children, &step{edge: e, parent: cur, depth: depth})
		}

		if len(children) == 0 {
			emit(cur)
			continue
		}

		if strategy == BFS {
			frontier = append(frontier, children...)
		} else {
			// Reversed so the first candidate is expanded first.
			for i := len(children) - 1; i >= 0; i-- {
				frontier = append(frontier, children[i])
			}
		}
	}

	return result
}
