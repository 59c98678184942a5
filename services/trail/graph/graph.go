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
	"fmt"
	"slices"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// Options configures Graph limits.
type Options struct {
	// MaxNodes is the maximum number of nodes. Default: 1,000,000
	MaxNodes int

	// MaxEdges is the maximum number of edges. Default: 10,000,000
	MaxEdges int
}

// DefaultOptions returns sensible defaults for graph configuration.
func DefaultOptions() Options {
	return Options{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// Option is a functional option for configuring Graph.
type Option func(*Options)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) Option {
	return func(o *Options) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) Option {
	return func(o *Options) {
		o.MaxEdges = n
	}
}

// Graph is the note relationship multigraph.
//
// Lifecycle:
//
//  1. Create with New()
//  2. Populate with UpsertNode() and AddDirectedEdge()
//  3. Run inference (package implied) on the same goroutine
//  4. Publish to readers; do not mutate afterwards
type Graph struct {
	nodes     map[string]*Node
	nextOrder int

	edges     map[EdgeID]*Edge
	edgeOrder []EdgeID

	out map[string][]EdgeID
	in  map[string][]EdgeID

	options Options
}

// New creates an empty graph.
//
// Example:
//
//	g := graph.New(graph.WithMaxEdges(100_000))
func New(opts ...Option) *Graph {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[EdgeID]*Edge),
		out:     make(map[string][]EdgeID),
		in:      make(map[string][]EdgeID),
		options: options,
	}
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, copyNode(n))
	}
	slices.SortFunc(out, func(a, b Node) int { return a.Order - b.Order })
	return out
}

// AddNode inserts a node if it does not exist yet.
//
// Outputs:
//
//	bool - True if the node was created. False if it already existed, the
//	       id is empty, or the graph is at capacity.
func (g *Graph) AddNode(id string, attrs NodeAttrs) bool {
	if id == "" {
		return false
	}
	if _, exists := g.nodes[id]; exists {
		return false
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return false
	}
	g.insertNode(id, attrs, g.nextOrder)
	g.nextOrder++
	return true
}

// UpsertNode inserts a node or merges attrs into the existing one.
//
// Description:
//
//	Merging is monotonic: Resolved and the ignore flags are OR-ed, aliases
//	are unioned. A weaker value never overwrites a stronger one, so the
//	order in which sources report a node does not matter.
//
// Outputs:
//
//	bool - False only if the id is empty or the graph is at capacity.
func (g *Graph) UpsertNode(id string, attrs NodeAttrs) bool {
	if id == "" {
		return false
	}
	if n, exists := g.nodes[id]; exists {
		n.NodeAttrs = mergeAttrs(n.NodeAttrs, attrs)
		return true
	}
	return g.AddNode(id, attrs)
}

func (g *Graph) insertNode(id string, attrs NodeAttrs, order int) {
	g.nodes[id] = &Node{
		ID:        id,
		Order:     order,
		NodeAttrs: mergeAttrs(NodeAttrs{}, attrs),
	}
	if order >= g.nextOrder {
		g.nextOrder = order + 1
	}
}

// AddDirectedEdge adds source -[attrs.Field]-> target.
//
// Description:
//
//	Missing endpoints are created as unresolved nodes. The edge is rejected
//	when the target ignores in-edges, the source ignores out-edges, an edge
//	with the same (source, field, target) already exists, or the graph is
//	at edge capacity.
//
// Inputs:
//
//	source - ID of the source node. Must not be empty.
//	target - ID of the target node. Must not be empty.
//	attrs - Edge attributes. A nil Provenance is stored as Explicit{}.
//
// Outputs:
//
//	bool - True if the edge was inserted.
func (g *Graph) AddDirectedEdge(source, target string, attrs EdgeAttrs) bool {
	if source == "" || target == "" {
		return false
	}

	id := EdgeID{Source: source, Field: attrs.Field, Target: target}
	if _, exists := g.edges[id]; exists {
		return false
	}
	if len(g.edges) >= g.options.MaxEdges {
		return false
	}

	if !g.HasNode(source) && !g.AddNode(source, NodeAttrs{}) {
		return false
	}
	if !g.HasNode(target) && !g.AddNode(target, NodeAttrs{}) {
		return false
	}

	if g.nodes[target].IgnoreInEdges || g.nodes[source].IgnoreOutEdges {
		return false
	}

	g.insertEdge(source, target, attrs)
	return true
}

func (g *Graph) insertEdge(source, target string, attrs EdgeAttrs) {
	if attrs.Provenance == nil {
		attrs.Provenance = Explicit{}
	}
	e := &Edge{EdgeAttrs: attrs, Source: source, Target: target}
	id := e.ID()
	g.edges[id] = e
	g.edgeOrder = append(g.edgeOrder, id)
	g.out[source] = append(g.out[source], id)
	g.in[target] = append(g.in[target], id)
}

// HasEdge reports whether an edge with the given identity exists.
func (g *Graph) HasEdge(id EdgeID) bool {
	_, ok := g.edges[id]
	return ok
}

// Edge returns the edge with the given identity.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// RemoveEdge deletes exactly one edge instance.
func (g *Graph) RemoveEdge(id EdgeID) bool {
	if _, ok := g.edges[id]; !ok {
		return false
	}
	delete(g.edges, id)

	match := func(x EdgeID) bool { return x == id }
	g.out[id.Source] = slices.DeleteFunc(g.out[id.Source], match)
	g.in[id.Target] = slices.DeleteFunc(g.in[id.Target], match)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, match)
	return true
}

// RenameNode moves a node and all its incident edges to a new ID.
//
// Description:
//
//	Every edge touching oldID is rewritten once to reference newID. A self
//	loop on oldID becomes a single self loop on newID. The node keeps its
//	attributes and its Order.
//
// Errors:
//
//	ErrEmptyID - newID is empty
//	ErrNodeNotFound - oldID is not in the graph
//	ErrNodeExists - newID is already in the graph
func (g *Graph) RenameNode(oldID, newID string) error {
	if newID == "" {
		return ErrEmptyID
	}
	node, ok := g.nodes[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, oldID)
	}
	if _, taken := g.nodes[newID]; taken {
		return fmt.Errorf("%w: %s", ErrNodeExists, newID)
	}

	swap := func(s string) string {
		if s == oldID {
			return newID
		}
		return s
	}

	// Collect incident edges once; a self loop sits in both lists.
	renamed := make(map[EdgeID]EdgeID)
	for _, list := range [][]EdgeID{g.out[oldID], g.in[oldID]} {
		for _, id := range list {
			if _, done := renamed[id]; done {
				continue
			}
			e := g.edges[id]
			delete(g.edges, id)
			moved := *e
			moved.Source = swap(e.Source)
			moved.Target = swap(e.Target)
			g.edges[moved.ID()] = &moved
			renamed[id] = moved.ID()
		}
	}

	relink := func(list []EdgeID) []EdgeID {
		for i, id := range list {
			if n, ok := renamed[id]; ok {
				list[i] = n
			}
		}
		return list
	}

	neighbours := make(map[string]struct{})
	for old := range renamed {
		if old.Source != oldID {
			neighbours[old.Source] = struct{}{}
		}
		if old.Target != oldID {
			neighbours[old.Target] = struct{}{}
		}
	}
	for id := range neighbours {
		g.out[id] = relink(g.out[id])
		g.in[id] = relink(g.in[id])
	}

	g.out[newID] = relink(g.out[oldID])
	g.in[newID] = relink(g.in[oldID])
	delete(g.out, oldID)
	delete(g.in, oldID)
	g.edgeOrder = relink(g.edgeOrder)

	delete(g.nodes, oldID)
	node.ID = newID
	g.nodes[newID] = node
	return nil
}

// OutEdges returns the edges leaving id, in insertion order.
func (g *Graph) OutEdges(id string) []Edge {
	return g.collect(g.out[id], nil)
}

// InEdges returns the edges pointing at id, in insertion order.
func (g *Graph) InEdges(id string) []Edge {
	return g.collect(g.in[id], nil)
}

// FilterOutEdges returns the edges leaving id that pass filter.
func (g *Graph) FilterOutEdges(id string, filter EdgeFilter) []Edge {
	return g.collect(g.out[id], filter)
}

// FilterInEdges returns the edges pointing at id that pass filter.
func (g *Graph) FilterInEdges(id string, filter EdgeFilter) []Edge {
	return g.collect(g.in[id], filter)
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge {
	return g.collect(g.edgeOrder, nil)
}

// FilterEdges returns every edge that passes filter, in insertion order.
func (g *Graph) FilterEdges(filter EdgeFilter) []Edge {
	return g.collect(g.edgeOrder, filter)
}

func (g *Graph) collect(ids []EdgeID, filter EdgeFilter) []Edge {
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		e, ok := g.edges[id]
		if !ok {
			continue
		}
		if filter != nil && !filter(*e) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:     make(map[string]*Node, len(g.nodes)),
		nextOrder: g.nextOrder,
		edges:     make(map[EdgeID]*Edge, len(g.edges)),
		edgeOrder: append([]EdgeID(nil), g.edgeOrder...),
		out:       make(map[string][]EdgeID, len(g.out)),
		in:        make(map[string][]EdgeID, len(g.in)),
		options:   g.options,
	}
	for id, n := range g.nodes {
		cp := copyNode(n)
		c.nodes[id] = &cp
	}
	for id, e := range g.edges {
		cp := *e
		c.edges[id] = &cp
	}
	for id, list := range g.out {
		c.out[id] = append([]EdgeID(nil), list...)
	}
	for id, list := range g.in {
		c.in[id] = append([]EdgeID(nil), list...)
	}
	return c
}

func copyNode(n *Node) Node {
	cp := *n
	cp.Aliases = append([]string(nil), n.Aliases...)
	return cp
}

// Stats contains statistics about the graph.
type Stats struct {
	// NodeCount is the total number of nodes.
	NodeCount int `json:"node_count"`

	// ResolvedNodes is the number of nodes backed by an existing document.
	ResolvedNodes int `json:"resolved_nodes"`

	// EdgeCount is the total number of edges.
	EdgeCount int `json:"edge_count"`

	// ExplicitEdges is the number of declared edges.
	ExplicitEdges int `json:"explicit_edges"`

	// ImpliedByKind maps rule kind to the number of edges it produced.
	ImpliedByKind map[string]int `json:"implied_by_kind"`
}

// Stats returns node and edge counts broken down by provenance.
func (g *Graph) Stats() Stats {
	s := Stats{
		NodeCount:     len(g.nodes),
		EdgeCount:     len(g.edges),
		ImpliedByKind: make(map[string]int),
	}
	for _, n := range g.nodes {
		if n.Resolved {
			s.ResolvedNodes++
		}
	}
	for _, e := range g.edges {
		switch p := e.Provenance.(type) {
		case Implied:
			s.ImpliedByKind[p.Kind]++
		default:
			s.ExplicitEdges++
		}
	}
	return s
}
