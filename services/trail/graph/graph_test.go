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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// attrs builds explicit edge attributes for the default hierarchy.
func attrs(field string) EdgeAttrs {
	return EdgeAttrs{
		Field:      field,
		Direction:  hierarchy.Direction(field),
		Provenance: Explicit{SourceKind: "test"},
	}
}

// mustEdge adds an edge and fails the test if it was rejected.
func mustEdge(t *testing.T, g *Graph, source, field, target string) {
	t.Helper()
	require.True(t, g.AddDirectedEdge(source, target, attrs(field)), "edge %s -%s-> %s rejected", source, field, target)
}

func TestAddDirectedEdge_Uniqueness(t *testing.T) {
	g := New()

	assert.True(t, g.AddDirectedEdge("A", "B", attrs("up")))
	assert.False(t, g.AddDirectedEdge("A", "B", attrs("up")), "same triple must be rejected")

	implied := attrs("up")
	implied.Provenance = Implied{Kind: "whatever", Round: 3}
	assert.False(t, g.AddDirectedEdge("A", "B", implied), "provenance is not part of identity")

	assert.True(t, g.AddDirectedEdge("A", "B", attrs("same")), "different field may coexist")
	assert.Equal(t, 2, g.EdgeCount())

	e, ok := g.Edge(EdgeID{Source: "A", Field: "up", Target: "B"})
	require.True(t, ok)
	assert.True(t, e.IsExplicit())
	assert.Equal(t, "test", e.Kind())
}

func TestAddDirectedEdge_CreatesUnresolvedNodes(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "B")

	n, ok := g.Node("B")
	require.True(t, ok)
	assert.False(t, n.Resolved)
	assert.Equal(t, []string{"A", "B"}, nodeIDs(g.Nodes()))
}

func TestAddDirectedEdge_IgnoreFlags(t *testing.T) {
	g := New()
	g.AddNode("quiet", NodeAttrs{IgnoreInEdges: true})
	g.AddNode("mute", NodeAttrs{IgnoreOutEdges: true})

	assert.False(t, g.AddDirectedEdge("A", "quiet", attrs("up")))
	assert.False(t, g.AddDirectedEdge("mute", "A", attrs("up")))
	assert.True(t, g.AddDirectedEdge("quiet", "mute", attrs("up")))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestAddDirectedEdge_NilProvenanceIsExplicit(t *testing.T) {
	g := New()
	require.True(t, g.AddDirectedEdge("A", "B", EdgeAttrs{Field: "up", Direction: hierarchy.Up}))

	e, _ := g.Edge(EdgeID{Source: "A", Field: "up", Target: "B"})
	assert.Equal(t, Explicit{}, e.Provenance)
	assert.Equal(t, 0, e.Round())
}

func TestAddDirectedEdge_Capacity(t *testing.T) {
	g := New(WithMaxEdges(1), WithMaxNodes(3))

	assert.True(t, g.AddDirectedEdge("A", "B", attrs("up")))
	assert.False(t, g.AddDirectedEdge("B", "C", attrs("up")))

	g2 := New(WithMaxNodes(1))
	assert.False(t, g2.AddDirectedEdge("A", "B", attrs("up")))
}

func TestUpsertNode_MonotonicMerge(t *testing.T) {
	g := New()
	require.True(t, g.UpsertNode("A", NodeAttrs{Resolved: true, Aliases: []string{"alpha"}}))
	require.True(t, g.UpsertNode("A", NodeAttrs{Resolved: false, Aliases: []string{"alpha", "first"}}))
	require.True(t, g.UpsertNode("A", NodeAttrs{IgnoreInEdges: true}))

	n, ok := g.Node("A")
	require.True(t, ok)
	assert.True(t, n.Resolved, "a weaker value must not overwrite resolved")
	assert.True(t, n.IgnoreInEdges)
	assert.Equal(t, []string{"alpha", "first"}, n.Aliases)
	assert.Equal(t, "alpha", n.FirstAlias())

	assert.False(t, g.UpsertNode("", NodeAttrs{}))
}

func TestNode_ReturnsCopy(t *testing.T) {
	g := New()
	g.AddNode("A", NodeAttrs{Aliases: []string{"alpha"}})

	n, _ := g.Node("A")
	n.Aliases[0] = "mutated"

	again, _ := g.Node("A")
	assert.Equal(t, "alpha", again.FirstAlias())
}

func TestRemoveEdge(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "B")
	mustEdge(t, g, "A", "same", "B")

	id := EdgeID{Source: "A", Field: "up", Target: "B"}
	assert.True(t, g.RemoveEdge(id))
	assert.False(t, g.RemoveEdge(id))
	assert.False(t, g.HasEdge(id))

	require.Len(t, g.OutEdges("A"), 1)
	assert.Equal(t, "same", g.OutEdges("A")[0].Field)
	require.Len(t, g.InEdges("B"), 1)
	assert.Len(t, g.Edges(), 1)
}

func TestRenameNode(t *testing.T) {
	t.Run("relinks incident edges", func(t *testing.T) {
		g := New()
		mustEdge(t, g, "A", "up", "B")
		mustEdge(t, g, "C", "same", "A")
		g.UpsertNode("A", NodeAttrs{Resolved: true})
		before, _ := g.Node("A")

		require.NoError(t, g.RenameNode("A", "Z"))

		assert.False(t, g.HasNode("A"))
		n, ok := g.Node("Z")
		require.True(t, ok)
		assert.True(t, n.Resolved)
		assert.Equal(t, before.Order, n.Order)

		assert.True(t, g.HasEdge(EdgeID{Source: "Z", Field: "up", Target: "B"}))
		assert.True(t, g.HasEdge(EdgeID{Source: "C", Field: "same", Target: "Z"}))
		assert.Equal(t, 2, g.EdgeCount())
		assert.Equal(t, "Z", g.InEdges("B")[0].Source)
		assert.Equal(t, "Z", g.OutEdges("C")[0].Target)
		assert.Empty(t, g.OutEdges("A"))
	})

	t.Run("self loop is reattached once", func(t *testing.T) {
		g := New()
		mustEdge(t, g, "A", "same", "A")
		mustEdge(t, g, "A", "up", "B")

		require.NoError(t, g.RenameNode("A", "Z"))

		assert.Equal(t, 2, g.EdgeCount())
		assert.True(t, g.HasEdge(EdgeID{Source: "Z", Field: "same", Target: "Z"}))
		assert.Len(t, g.OutEdges("Z"), 2)
		assert.Len(t, g.InEdges("Z"), 1)
		assert.Len(t, g.Edges(), 2)
	})

	t.Run("errors", func(t *testing.T) {
		g := New()
		mustEdge(t, g, "A", "up", "B")

		assert.True(t, errors.Is(g.RenameNode("missing", "X"), ErrNodeNotFound))
		assert.True(t, errors.Is(g.RenameNode("A", "B"), ErrNodeExists))
		assert.True(t, errors.Is(g.RenameNode("A", ""), ErrEmptyID))
		assert.True(t, g.HasNode("A"))
	})
}

func TestFilters(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "B")
	mustEdge(t, g, "A", "same", "C")
	implied := attrs("down")
	implied.Provenance = Implied{Kind: "opposite_direction", Round: 1}
	require.True(t, g.AddDirectedEdge("A", "D", implied))

	assert.Len(t, g.FilterOutEdges("A", ByFields("up", "down")), 2)
	assert.Len(t, g.FilterOutEdges("A", ByDirections(hierarchy.Same)), 1)
	assert.Len(t, g.FilterEdges(ExplicitOnly()), 2)
	assert.Len(t, g.FilterEdges(ImpliedKinds("opposite_direction")), 1)
	assert.Len(t, g.FilterEdges(And(ExplicitOnly(), ByFields("up"))), 1)
	assert.Len(t, g.FilterEdges(And(nil, ByFields("up"))), 1)
}

func TestClone_Independent(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "B")

	c := g.Clone()
	mustEdge(t, c, "B", "up", "C")

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, c.EdgeCount())
	assert.False(t, g.HasNode("C"))
}

func TestStats(t *testing.T) {
	g := New()
	g.UpsertNode("A", NodeAttrs{Resolved: true})
	mustEdge(t, g, "A", "up", "B")
	implied := attrs("down")
	implied.Provenance = Implied{Kind: "opposite_direction", Round: 1}
	g.AddDirectedEdge("B", "A", implied)

	s := g.Stats()
	assert.Equal(t, 2, s.NodeCount)
	assert.Equal(t, 1, s.ResolvedNodes)
	assert.Equal(t, 2, s.EdgeCount)
	assert.Equal(t, 1, s.ExplicitEdges)
	assert.Equal(t, map[string]int{"opposite_direction": 1}, s.ImpliedByKind)
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
