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

	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// KindReflexiveClosure tags edges added by ReflexiveClosure.
const KindReflexiveClosure = "reflexive_closure"

// Subgraph returns a fresh graph holding only the edges that pass filter and
// the nodes they touch.
//
// Description:
//
//	Node attributes are copied and the Order of every kept node is
//	preserved, so listings over the projection sort the same way as over
//	the full graph. Edge insertion order is preserved too. The projection
//	bypasses the ignore flags: every kept edge was already accepted once.
//
// Inputs:
//
//	filter - Edge filter. Nil keeps every edge (a deep copy).
//
// Outputs:
//
//	*Graph - The projection, with the same options as g.
func (g *Graph) Subgraph(filter EdgeFilter) *Graph {
	sub := New(WithMaxNodes(g.options.MaxNodes), WithMaxEdges(g.options.MaxEdges))

	for _, id := range g.edgeOrder {
		e, ok := g.edges[id]
		if !ok {
			continue
		}
		if filter != nil && !filter(*e) {
			continue
		}
		for _, endpoint := range []string{e.Source, e.Target} {
			if sub.HasNode(endpoint) {
				continue
			}
			n := g.nodes[endpoint]
			sub.insertNode(n.ID, n.NodeAttrs, n.Order)
		}
		sub.insertEdge(e.Source, e.Target, e.EdgeAttrs)
	}

	return sub
}

// ReflexiveClosure adds the reverse of every edge that lacks one.
//
// Description:
//
//	For each edge (s -> t, field f, direction d) the edge
//	(t -> s, opposite field of f, opposite of d) is added when absent. When
//	the hierarchy has no opposite label, the opposite direction name is used
//	as the label. Added edges are tagged Implied{Kind: "reflexive_closure"}.
//	Only the edges present on entry are considered.
//
// Inputs:
//
//	reg - Registry used to find opposite labels.
//
// Outputs:
//
//	int - Number of edges added.
func (g *Graph) ReflexiveClosure(reg *hierarchy.Registry) int {
	added := 0
	for _, e := range g.Edges() {
		field, ok := reg.OppositeField(e.Field)
		if !ok {
			field = e.Direction.Opposite().String()
		}
		attrs := EdgeAttrs{
			Field:          field,
			Direction:      e.Direction.Opposite(),
			HierarchyIndex: e.HierarchyIndex,
			Provenance:     Implied{Kind: KindReflexiveClosure},
		}
		if g.AddDirectedEdge(e.Target, e.Source, attrs) {
			added++
		}
	}
	return added
}

// RemoveCycles breaks two-node cycles reachable from start.
//
// Description:
//
//	Walks depth first from start entering each node once. Whenever an
//	edge leads straight back to the node the walk just came from, that one
//	edge instance is removed. Parallel edges with other fields survive
//	unless they too are walked back over.
//
// Inputs:
//
//	start - Node to walk from. A missing node removes nothing.
//	filter - Edges considered by the walk. Nil considers all.
//
// Outputs:
//
//	int - Number of edges removed.
func (g *Graph) RemoveCycles(start string, filter EdgeFilter) int {
	if !g.HasNode(start) {
		return 0
	}

	var back []EdgeID
	seen := make(map[EdgeID]struct{})
	options := DefaultWalkOptions()
	options.Policy = PolicyGlobal
	options.MaxRevisits = 1
	options.Filter = filter
	options.inspect = func(prev string, e Edge) bool {
		if prev == "" || e.Target != prev {
			return false
		}
		id := e.ID()
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			back = append(back, id)
		}
		return true
	}

	g.walk(context.Background(), start, DFS, options)

	removed := 0
	for _, id := range back {
		if g.RemoveEdge(id) {
			removed++
		}
	}
	return removed
}

// Neighbours groups the out-edges of id by direction.
//
// Every direction is present in the result, possibly with an empty slice.
func (g *Graph) Neighbours(id string) map[hierarchy.Direction][]Edge {
	out := make(map[hierarchy.Direction][]Edge, len(hierarchy.Directions))
	for _, dir := range hierarchy.Directions {
		out[dir] = []Edge{}
	}
	for _, e := range g.OutEdges(id) {
		out[e.Direction] = append(out[e.Direction], e)
	}
	return out
}
