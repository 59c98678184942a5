// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package implied

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

func defaultRegistry(t *testing.T) *hierarchy.Registry {
	t.Helper()
	reg, conflicts := hierarchy.NewRegistry([]hierarchy.Hierarchy{hierarchy.Default()}, nil)
	require.Empty(t, conflicts)
	return reg
}

// explicit adds a declared edge whose attributes come from reg.
func explicit(t *testing.T, g *graph.Graph, reg *hierarchy.Registry, source, field, target string) {
	t.Helper()
	info, ok := reg.Lookup(field)
	require.True(t, ok, "unknown field %q", field)
	require.True(t, g.AddDirectedEdge(source, target, graph.EdgeAttrs{
		Field:          field,
		Direction:      info.Direction,
		HierarchyIndex: info.HierarchyIndex,
		Provenance:     graph.Explicit{SourceKind: "test"},
	}))
}

func only(name string, rounds int) []Rule {
	for _, r := range Builtins() {
		if r.Name == name {
			r.Enabled = true
			r.Rounds = rounds
			return []Rule{r}
		}
	}
	panic("no builtin " + name)
}

func hasEdge(g *graph.Graph, source, field, target string) bool {
	return g.HasEdge(graph.EdgeID{Source: source, Field: field, Target: target})
}

func TestRun_OppositeDirection(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "B")
	explicit(t, g, reg, "A", "next", "C")

	report := New().Run(context.Background(), g, reg, Builtins())

	e, ok := g.Edge(graph.EdgeID{Source: "B", Field: "down", Target: "A"})
	require.True(t, ok)
	assert.Equal(t, hierarchy.Down, e.Direction)
	assert.Equal(t, KindOppositeDirection, e.Kind())
	assert.Equal(t, 1, e.Round())
	assert.True(t, hasEdge(g, "C", "prev", "A"))
	assert.Equal(t, 2, report.AddedByKind()[KindOppositeDirection])
}

func TestRun_OppositeClosureProperty(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "P")
	explicit(t, g, reg, "B", "up", "P")
	explicit(t, g, reg, "A", "same", "C")
	explicit(t, g, reg, "P", "next", "Q")

	New().Run(context.Background(), g, reg, Builtins())

	for _, e := range g.FilterEdges(graph.ExplicitOnly()) {
		back := g.FilterOutEdges(e.Target, graph.ByDirections(e.Direction.Opposite()))
		found := false
		for _, b := range back {
			if b.Target == e.Source {
				found = true
			}
		}
		assert.True(t, found, "no opposite edge for %s", e)
	}
}

func TestRun_OppositeWithoutLabel(t *testing.T) {
	reg, _ := hierarchy.NewRegistry([]hierarchy.Hierarchy{{
		Name:   "partial",
		Fields: map[hierarchy.Direction][]string{hierarchy.Up: {"parent"}},
	}}, nil)

	t.Run("skipped by default", func(t *testing.T) {
		g := graph.New()
		explicit(t, g, reg, "A", "parent", "B")
		report := New().Run(context.Background(), g, reg, only(KindOppositeDirection, 1))
		assert.Equal(t, 1, g.EdgeCount())
		assert.True(t, report.FixedPoint)
	})

	t.Run("fallback label", func(t *testing.T) {
		g := graph.New()
		explicit(t, g, reg, "A", "parent", "B")
		rules := only(KindOppositeDirection, 1)
		rules[0].FallbackOpposite = true
		New().Run(context.Background(), g, reg, rules)
		assert.True(t, hasEdge(g, "B", "down", "A"))
	})
}

func TestRun_CustomChainRule(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "P")
	explicit(t, g, reg, "P", "same", "Q")

	rule := Rule{
		Name:       "aunt",
		Chain:      []graph.EdgePattern{{Field: "up"}, {Field: "same"}},
		CloseField: "up",
		Rounds:     1,
		Enabled:    true,
	}
	require.NoError(t, rule.Validate())

	report := New().Run(context.Background(), g, reg, []Rule{rule})

	e, ok := g.Edge(graph.EdgeID{Source: "A", Field: "up", Target: "Q"})
	require.True(t, ok)
	assert.Equal(t, graph.Implied{Kind: "aunt", Round: 1}, e.Provenance)
	assert.Equal(t, hierarchy.Up, e.Direction)
	assert.False(t, hasEdge(g, "Q", "up", "A"))
	assert.Equal(t, 1, report.Total())
}

func TestRun_CloseReversed(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "P")
	explicit(t, g, reg, "P", "same", "Q")

	rule := Rule{
		Name:          "nibling",
		Chain:         []graph.EdgePattern{{Field: "up"}, {Field: "same"}},
		CloseField:    "down",
		CloseReversed: true,
		Rounds:        1,
		Enabled:       true,
	}
	New().Run(context.Background(), g, reg, []Rule{rule})

	assert.True(t, hasEdge(g, "Q", "down", "A"))
	assert.False(t, hasEdge(g, "A", "down", "Q"))
}

func TestRun_RoundBound(t *testing.T) {
	reg := defaultRegistry(t)
	build := func() *graph.Graph {
		g := graph.New()
		explicit(t, g, reg, "A", "same", "B")
		explicit(t, g, reg, "B", "same", "C")
		explicit(t, g, reg, "C", "same", "D")
		return g
	}

	t.Run("one round", func(t *testing.T) {
		g := build()
		report := New().Run(context.Background(), g, reg, only(KindSameSiblingIsSibling, 1))
		assert.True(t, hasEdge(g, "A", "same", "C"))
		assert.True(t, hasEdge(g, "B", "same", "D"))
		assert.False(t, hasEdge(g, "A", "same", "D"))
		assert.Len(t, report.Rounds, 1)
		assert.False(t, report.FixedPoint)
	})

	t.Run("two rounds", func(t *testing.T) {
		g := build()
		New().Run(context.Background(), g, reg, only(KindSameSiblingIsSibling, 2))
		e, ok := g.Edge(graph.EdgeID{Source: "A", Field: "same", Target: "D"})
		require.True(t, ok)
		assert.Equal(t, 2, e.Round())
	})

	t.Run("no edge exceeds the bound", func(t *testing.T) {
		g := graph.New()
		for _, pair := range [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}, {"C", "D"}, {"D", "E"}} {
			explicit(t, g, reg, pair[0], "same", pair[1])
		}
		New().Run(context.Background(), g, reg, only(KindSameSiblingIsSibling, 3))
		for _, e := range g.FilterEdges(graph.ImpliedKinds(KindSameSiblingIsSibling)) {
			assert.LessOrEqual(t, e.Round(), 3)
			assert.False(t, e.IsSelfLoop())
		}
	})

	t.Run("fixed point stops early", func(t *testing.T) {
		g := build()
		report := New().Run(context.Background(), g, reg, only(KindSameSiblingIsSibling, 10))
		assert.True(t, report.FixedPoint)
		assert.Less(t, len(report.Rounds), 10)
	})
}

func TestRun_SelfIsSiblingIdempotent(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "B")

	rules := only(KindSelfIsSibling, 1)
	New().Run(context.Background(), g, reg, rules)
	require.True(t, hasEdge(g, "A", "same", "A"))
	require.True(t, hasEdge(g, "B", "same", "B"))
	count := g.EdgeCount()

	report := New().Run(context.Background(), g, reg, rules)
	assert.Equal(t, count, g.EdgeCount())
	assert.Zero(t, report.Total())
	assert.Len(t, g.FilterOutEdges("A", graph.ImpliedKinds(KindSelfIsSibling)), 1)
}

func TestRun_DirectionRules(t *testing.T) {
	reg := defaultRegistry(t)

	tests := []struct {
		name  string
		rule  string
		edges [][3]string
		want  [3]string
	}{
		{"same parent", KindSameParentIsSibling, [][3]string{{"A", "up", "P"}, {"P", "down", "B"}}, [3]string{"A", "same", "B"}},
		{"sibling's parent", KindSiblingsParentIsParent, [][3]string{{"A", "same", "S"}, {"S", "up", "P"}}, [3]string{"A", "up", "P"}},
		{"parent's sibling", KindParentsSiblingIsParent, [][3]string{{"A", "up", "P"}, {"P", "same", "U"}}, [3]string{"A", "up", "U"}},
		{"cousin", KindCousinIsSibling, [][3]string{{"A", "up", "P"}, {"P", "same", "U"}, {"U", "down", "C"}}, [3]string{"A", "same", "C"}},
		{"same edge", KindSameEdgeIsSibling, [][3]string{{"A", "same", "X"}, {"B", "same", "X"}}, [3]string{"A", "same", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.New()
			for _, e := range tt.edges {
				explicit(t, g, reg, e[0], e[1], e[2])
			}
			New().Run(context.Background(), g, reg, only(tt.rule, 1))
			e, ok := g.Edge(graph.EdgeID{Source: tt.want[0], Field: tt.want[1], Target: tt.want[2]})
			require.True(t, ok)
			assert.Equal(t, tt.rule, e.Kind())
		})
	}
}

func TestRun_SelfLoopsDropped(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "P")

	rule := only(KindSameParentIsSibling, 1)
	explicit(t, g, reg, "P", "down", "A")
	New().Run(context.Background(), g, reg, rule)
	assert.False(t, hasEdge(g, "A", "same", "A"))

	rule[0].AllowSelfLoops = true
	New().Run(context.Background(), g, reg, rule)
	assert.True(t, hasEdge(g, "A", "same", "A"))
}

func TestRun_ScopedPerHierarchy(t *testing.T) {
	reg, conflicts := hierarchy.NewRegistry([]hierarchy.Hierarchy{
		hierarchy.Default(),
		{
			Name: "taxonomy",
			Fields: map[hierarchy.Direction][]string{
				hierarchy.Up:   {"genus"},
				hierarchy.Same: {"related"},
				hierarchy.Down: {"species"},
			},
		},
	}, nil)
	require.Empty(t, conflicts)

	g := graph.New()
	explicit(t, g, reg, "A", "up", "P")
	explicit(t, g, reg, "P", "species", "B")
	explicit(t, g, reg, "A", "genus", "G")
	explicit(t, g, reg, "G", "species", "C")

	New().Run(context.Background(), g, reg, only(KindSameParentIsSibling, 1))

	assert.False(t, hasEdge(g, "A", "same", "B"), "up and species live in different hierarchies")
	assert.False(t, hasEdge(g, "A", "related", "B"))
	e, ok := g.Edge(graph.EdgeID{Source: "A", Field: "related", Target: "C"})
	require.True(t, ok)
	assert.Equal(t, 1, e.HierarchyIndex)
}

func TestRun_UnknownFieldIsInert(t *testing.T) {
	reg := defaultRegistry(t)
	g := graph.New()
	explicit(t, g, reg, "A", "up", "B")

	rules := []Rule{
		{Name: "ghost", Chain: []graph.EdgePattern{{Field: "mentor"}}, CloseField: "up", Rounds: 1, Enabled: true},
		{Name: "ghost_close", Chain: []graph.EdgePattern{{Field: "up"}}, CloseField: "mentor", Rounds: 1, Enabled: true},
		{Name: "off", Chain: []graph.EdgePattern{{Field: "up"}}, CloseField: "same", Rounds: 1},
	}
	report := New().Run(context.Background(), g, reg, rules)

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"ghost", "ghost_close"}, report.Inert)
	assert.Empty(t, report.Rounds)
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"builtin opposite", Rule{Name: KindOppositeDirection, Rounds: 1}, true},
		{"field chain", Rule{Name: "x", Chain: []graph.EdgePattern{{Field: "up"}}, CloseField: "up"}, true},
		{"empty name", Rule{Chain: []graph.EdgePattern{{Field: "up"}}, CloseField: "up"}, false},
		{"empty chain", Rule{Name: "x", CloseField: "up"}, false},
		{"blank step", Rule{Name: "x", Chain: []graph.EdgePattern{{}}, CloseField: "up"}, false},
		{"bad direction", Rule{Name: "x", Chain: []graph.EdgePattern{{Direction: "sideways"}}, CloseField: "up"}, false},
		{"no close", Rule{Name: "x", Chain: []graph.EdgePattern{{Field: "up"}}}, false},
		{"bad close direction", Rule{Name: "x", Chain: []graph.EdgePattern{{Field: "up"}}, CloseDirection: "around"}, false},
		{"negative rounds", Rule{Name: "x", Chain: []graph.EdgePattern{{Field: "up"}}, CloseField: "up", Rounds: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrMalformedRule))
		})
	}
}

func TestBuiltins(t *testing.T) {
	for _, r := range Builtins() {
		require.NoError(t, r.Validate(), r.Name)
		assert.True(t, IsBuiltin(r.Name))
		assert.Equal(t, r.Name != KindSelfIsSibling, r.Enabled, r.Name)
	}
	assert.False(t, IsBuiltin("aunt"))
}
