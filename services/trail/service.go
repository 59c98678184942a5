// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trail exposes the live relationship graph to rendering consumers.
//
// A Service answers queries against whatever graph the rebuild.Live holder
// currently publishes. Each query loads the published result once and works
// on it to the end, so a rebuild that lands mid-request never mixes two
// graphs in one answer. Handlers wrap the Service for HTTP.
package trail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/listindex"
	"github.com/AleutianAI/trailgraph/services/trail/rebuild"
	"github.com/AleutianAI/trailgraph/services/trail/sorter"
)

// ServiceVersion is the trail service version.
const ServiceVersion = "0.1.0"

// ServiceOption is a functional option for configuring the Service.
type ServiceOption func(*Service)

// WithDisplay sets the default list index rendering options.
func WithDisplay(opts listindex.Options) ServiceOption {
	return func(s *Service) {
		s.display = opts
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service answers graph queries.
//
// Thread Safety:
//
//	Safe for concurrent use. Published graphs are read only and every
//	request builds its own sorter.
type Service struct {
	live    *rebuild.Live
	display listindex.Options
	logger  *slog.Logger
}

// NewService creates a Service over live.
//
// Errors:
//
//	ErrNilLive - live is nil
func NewService(live *rebuild.Live, opts ...ServiceOption) (*Service, error) {
	if live == nil {
		return nil, ErrNilLive
	}
	s := &Service{
		live:    live,
		display: listindex.Options{Indent: listindex.DefaultIndent, LinkStyle: listindex.LinkPlain},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Live returns the holder the service reads from.
func (s *Service) Live() *rebuild.Live {
	return s.live
}

// current loads the published result, building it on first use.
func (s *Service) current(ctx context.Context) (*rebuild.Result, error) {
	return s.live.Current(ctx)
}

// node checks that id exists in res.
func node(res *rebuild.Result, id string) (graph.Node, error) {
	if id == "" {
		return graph.Node{}, ErrEmptyID
	}
	n, ok := res.Graph.Node(id)
	if !ok {
		return graph.Node{}, fmt.Errorf("%w: %q", graph.ErrNodeNotFound, id)
	}
	return n, nil
}

// compare returns the configured edge order for res. The default field
// keeps insertion order and yields nil.
func compare(res *rebuild.Result) (func(a, b graph.Edge) int, error) {
	srt, err := sorter.New(res.Graph, res.Sort)
	if err != nil {
		return nil, err
	}
	if srt.Spec().Field == sorter.FieldDefault {
		return nil, nil
	}
	return srt.Compare, nil
}

// Neighbours returns the out-edges of id grouped by direction.
//
// Description:
//
//	Every direction is present in the response, possibly empty. Edges are
//	sorted with the configured sort spec.
//
// Errors:
//
//	ErrEmptyID, graph.ErrNodeNotFound, or a Current failure.
func (s *Service) Neighbours(ctx context.Context, id string) (*NeighboursResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	n, err := node(res, id)
	if err != nil {
		return nil, err
	}
	srt, err := sorter.New(res.Graph, res.Sort)
	if err != nil {
		return nil, err
	}

	resp := &NeighboursResponse{
		BuildID:    res.BuildID,
		Node:       newNodeView(n),
		Neighbours: make(map[string][]EdgeView, len(hierarchy.Directions)),
	}
	for dir, edges := range res.Graph.Neighbours(id) {
		srt.Sort(edges)
		views := make([]EdgeView, len(edges))
		for i, e := range edges {
			views[i] = newEdgeView(e)
		}
		resp.Neighbours[dir.String()] = views
	}
	return resp, nil
}

// resolveFields expands labels, group names and direction names into a
// field filter. An empty list yields a nil filter.
func resolveFields(reg *hierarchy.Registry, labels []string) (graph.EdgeFilter, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	var fields []string
	for _, label := range labels {
		resolved := reg.ResolveGroup(label)
		if len(resolved) == 0 {
			return nil, fmt.Errorf("%w: %w %q", ErrInvalidRequest, hierarchy.ErrUnknownField, label)
		}
		fields = append(fields, resolved...)
	}
	return graph.ByFields(fields...), nil
}

// directionFields returns every label of dir across all hierarchies.
func directionFields(reg *hierarchy.Registry, dir hierarchy.Direction) []string {
	var out []string
	for hi := range reg.Hierarchies() {
		out = append(out, reg.FieldsFor(hi, dir)...)
	}
	return out
}

// Traverse walks the graph from req.Start.
//
// Description:
//
//	Starts from the configured traversal limits and applies the request's
//	overrides. Paths are returned without the start node.
//
// Errors:
//
//	ErrInvalidRequest - unknown strategy, policy or field
//	graph.ErrNodeNotFound - the start node does not exist
func (s *Service) Traverse(ctx context.Context, req TraverseRequest) (*TraverseResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := node(res, req.Start); err != nil {
		return nil, err
	}

	var strategy graph.Strategy
	switch strings.ToLower(req.Strategy) {
	case "", "dfs":
		strategy = graph.DFS
	case "bfs":
		strategy = graph.BFS
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, req.Strategy)
	}

	walk := res.Walk
	if req.MaxSteps > 0 {
		walk.MaxSteps = req.MaxSteps
	}
	if req.MaxRevisits > 0 {
		walk.MaxRevisits = req.MaxRevisits
	}
	if req.Policy != "" {
		p, err := graph.ParseRevisitPolicy(req.Policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		walk.Policy = p
	}

	fieldFilter, err := resolveFields(res.Registry, req.Fields)
	if err != nil {
		return nil, err
	}
	var explicit graph.EdgeFilter
	if req.ExplicitOnly {
		explicit = graph.ExplicitOnly()
	}
	walk.Filter = graph.And(walk.Filter, fieldFilter, explicit)

	if len(req.StopAt) > 0 {
		stops := make(map[string]struct{}, len(req.StopAt))
		for _, id := range req.StopAt {
			stops[id] = struct{}{}
		}
		walk.Stop = func(id string) bool {
			_, ok := stops[id]
			return ok
		}
	}
	if walk.Compare, err = compare(res); err != nil {
		return nil, err
	}

	var ps *graph.PathSet
	if strategy == graph.BFS {
		ps, err = res.Graph.BFSAllPaths(ctx, req.Start, graph.WithWalkOptions(walk))
	} else {
		ps, err = res.Graph.DFSAllPaths(ctx, req.Start, graph.WithWalkOptions(walk))
	}
	if err != nil {
		return nil, err
	}

	if ps.Truncated {
		s.logger.Warn("traversal truncated",
			slog.String("start", req.Start),
			slog.String("strategy", strategy.String()),
			slog.Int("steps", ps.Steps),
		)
	}
	return &TraverseResponse{
		BuildID:   res.BuildID,
		Start:     req.Start,
		Strategy:  strategy.String(),
		Paths:     ps.NodeLists(),
		Steps:     ps.Steps,
		Truncated: ps.Truncated,
	}, nil
}

// Trail returns every route from id up to a root.
//
// Description:
//
//	Walks breadth-first along every up label. A root is a node with no
//	outgoing up edge; each path ends at the first root it reaches.
func (s *Service) Trail(ctx context.Context, id string) (*TrailResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := node(res, id); err != nil {
		return nil, err
	}

	up := graph.ByFields(directionFields(res.Registry, hierarchy.Up)...)
	walk := res.Walk
	walk.Filter = up
	walk.Stop = func(n string) bool {
		return len(res.Graph.FilterOutEdges(n, up)) == 0
	}
	if walk.Compare, err = compare(res); err != nil {
		return nil, err
	}

	ps, err := res.Graph.BFSAllPaths(ctx, id, graph.WithWalkOptions(walk))
	if err != nil {
		return nil, err
	}
	return &TrailResponse{
		BuildID:   res.BuildID,
		ID:        id,
		Trails:    ps.NodeLists(),
		Truncated: ps.Truncated,
	}, nil
}

// Index renders the nested list reachable from req.ID in one direction.
//
// Description:
//
//	Walks depth-first along every label of the direction, sorted by the
//	configured spec, and renders the paths with listindex. Paths toward
//	parents are rendered root-first unless Reverse says otherwise.
//
// Errors:
//
//	ErrInvalidRequest - unknown direction or link style
//	graph.ErrNodeNotFound - the root does not exist
func (s *Service) Index(ctx context.Context, req IndexRequest) (*IndexResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := node(res, req.ID); err != nil {
		return nil, err
	}

	dir := hierarchy.Down
	if req.Direction != "" {
		if dir, err = hierarchy.ParseDirection(req.Direction); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	opts := s.display
	if req.LinkStyle != "" {
		if opts.LinkStyle, err = listindex.ParseLinkStyle(req.LinkStyle); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if req.Indent != "" {
		opts.Indent = req.Indent
	}
	if req.ShowAliases != nil {
		opts.ShowAliases = *req.ShowAliases
	}
	opts.Reverse = dir == hierarchy.Up
	if req.Reverse != nil {
		opts.Reverse = *req.Reverse
	}

	var explicit graph.EdgeFilter
	if req.ExplicitOnly {
		explicit = graph.ExplicitOnly()
	}
	walk := res.Walk
	walk.Filter = graph.And(graph.ByFields(directionFields(res.Registry, dir)...), explicit)
	if walk.Compare, err = compare(res); err != nil {
		return nil, err
	}

	ps, err := res.Graph.DFSAllPaths(ctx, req.ID, graph.WithWalkOptions(walk))
	if err != nil {
		return nil, err
	}
	paths := listindex.FromPathSet(ps)
	return &IndexResponse{
		BuildID:   res.BuildID,
		ID:        req.ID,
		Direction: dir.String(),
		Text:      listindex.Build(paths, opts, res.Graph),
		Paths:     paths,
		Truncated: ps.Truncated,
	}, nil
}

// Rebuild triggers a rebuild and returns the stats of the published graph.
//
// A failed rebuild leaves the previous graph live and returns the error.
func (s *Service) Rebuild(ctx context.Context) (*StatsResponse, error) {
	res, err := s.live.Trigger(ctx)
	if err != nil {
		return nil, err
	}
	return s.stats(res), nil
}

// Stats describes the published graph.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.stats(res), nil
}

func (s *Service) stats(res *rebuild.Result) *StatsResponse {
	return &StatsResponse{
		BuildID:    res.BuildID,
		Generation: s.live.Generation(),
		BuiltAt:    res.BuiltAt,
		DurationMs: res.Duration.Milliseconds(),
		Graph:      res.Stats,
		Intake:     res.Intake,
		Inference:  res.Inference,
		ErrorCount: len(res.Errors),
	}
}

// Errors returns the build errors of the published graph.
func (s *Service) Errors(ctx context.Context) (*ErrorsResponse, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return &ErrorsResponse{BuildID: res.BuildID, Errors: res.Errors}, nil
}

// Health reports whether a graph is live. It never triggers a build.
func (s *Service) Health() HealthResponse {
	res := s.live.Load()
	if res == nil {
		return HealthResponse{Status: "starting", Version: ServiceVersion}
	}
	return HealthResponse{Status: "healthy", Version: ServiceVersion, BuildID: res.BuildID}
}
