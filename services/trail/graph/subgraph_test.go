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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

func TestSubgraph_PreservesOrderAndAttrs(t *testing.T) {
	g := New()
	g.AddNode("unused", NodeAttrs{})
	g.UpsertNode("A", NodeAttrs{Resolved: true, Aliases: []string{"alpha"}})
	mustEdge(t, g, "A", "up", "B")
	mustEdge(t, g, "A", "same", "C")
	mustEdge(t, g, "B", "up", "D")

	sub := g.Subgraph(ByDirections(hierarchy.Up))

	assert.Equal(t, 2, sub.EdgeCount())
	assert.Equal(t, []string{"A", "B", "D"}, nodeIDs(sub.Nodes()))
	assert.False(t, sub.HasNode("C"))
	assert.False(t, sub.HasNode("unused"))

	orig, _ := g.Node("D")
	projected, _ := sub.Node("D")
	assert.Equal(t, orig.Order, projected.Order)

	a, _ := sub.Node("A")
	assert.True(t, a.Resolved)
	assert.Equal(t, []string{"alpha"}, a.Aliases)

	// New nodes continue after the preserved order.
	sub.AddNode("E", NodeAttrs{})
	e, _ := sub.Node("E")
	assert.Greater(t, e.Order, orig.Order)
}

func TestReflexiveClosure(t *testing.T) {
	reg, _ := hierarchy.NewRegistry([]hierarchy.Hierarchy{{
		Name: "family",
		Fields: map[hierarchy.Direction][]string{
			hierarchy.Up:   {"parent"},
			hierarchy.Down: {"child"},
			hierarchy.Next: {"next"},
		},
	}}, nil)

	g := New()
	require.True(t, g.AddDirectedEdge("A", "P", EdgeAttrs{Field: "parent", Direction: hierarchy.Up}))
	require.True(t, g.AddDirectedEdge("P", "A", EdgeAttrs{Field: "child", Direction: hierarchy.Down}))
	require.True(t, g.AddDirectedEdge("A", "B", EdgeAttrs{Field: "next", Direction: hierarchy.Next}))

	added := g.ReflexiveClosure(reg)

	assert.Equal(t, 1, added, "parent/child already mirror each other")
	e, ok := g.Edge(EdgeID{Source: "B", Field: "prev", Target: "A"})
	require.True(t, ok, "missing opposite label falls back to the direction name")
	assert.Equal(t, hierarchy.Prev, e.Direction)
	assert.Equal(t, KindReflexiveClosure, e.Kind())
	assert.Equal(t, 0, e.Round())

	assert.Zero(t, g.ReflexiveClosure(reg), "second pass adds nothing")
}

func TestRemoveCycles(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "down", "B")
	mustEdge(t, g, "B", "up", "A")
	mustEdge(t, g, "B", "same", "A")
	mustEdge(t, g, "B", "down", "C")
	mustEdge(t, g, "C", "up", "B")

	removed := g.RemoveCycles("A", ByFields("down", "up"))

	assert.Equal(t, 2, removed)
	assert.False(t, g.HasEdge(EdgeID{Source: "B", Field: "up", Target: "A"}))
	assert.False(t, g.HasEdge(EdgeID{Source: "C", Field: "up", Target: "B"}))
	assert.True(t, g.HasEdge(EdgeID{Source: "B", Field: "same", Target: "A"}), "only the walked instance is removed")
	assert.True(t, g.HasEdge(EdgeID{Source: "A", Field: "down", Target: "B"}))

	assert.Zero(t, g.RemoveCycles("missing", nil))
}

func TestNeighbours(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "P")
	mustEdge(t, g, "A", "same", "S1")
	mustEdge(t, g, "A", "same", "S2")

	n := g.Neighbours("A")
	assert.Len(t, n, len(hierarchy.Directions))
	assert.Len(t, n[hierarchy.Up], 1)
	assert.Len(t, n[hierarchy.Same], 2)
	assert.Empty(t, n[hierarchy.Down])
}
