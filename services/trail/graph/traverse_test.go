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
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// ring builds n nodes "0".."n-1" where each points "next" at its successor.
func ring(t *testing.T, n int) *Graph {
	t.Helper()
	g := New()
	for i := 0; i < n; i++ {
		mustEdge(t, g, strconv.Itoa(i), "next", strconv.Itoa((i+1)%n))
	}
	return g
}

func TestChainPaths(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "P")
	mustEdge(t, g, "P", "same", "Q")
	mustEdge(t, g, "P", "same", "A")
	mustEdge(t, g, "P", "down", "R")

	t.Run("full length only", func(t *testing.T) {
		paths := g.ChainPaths("A", []EdgePattern{{Field: "up"}, {Field: "same"}}, nil)
		require.Len(t, paths, 2)
		for _, p := range paths {
			require.Len(t, p.Edges, 2)
			assert.Equal(t, "up", p.Edges[0].Field)
			assert.Equal(t, "same", p.Edges[1].Field)
			assert.Equal(t, "A", p.Start)
		}
		assert.Equal(t, "Q", paths[0].End)
		assert.Equal(t, "A", paths[1].End, "start is not part of the visited set")

		assert.Empty(t, g.ChainPaths("A", []EdgePattern{{Field: "up"}, {Field: "same"}, {Field: "up"}}, nil))
	})

	t.Run("direction pattern", func(t *testing.T) {
		paths := g.ChainPaths("A", []EdgePattern{{Direction: hierarchy.Up}, {Direction: hierarchy.Down}}, nil)
		require.Len(t, paths, 1)
		assert.Equal(t, "R", paths[0].End)
	})

	t.Run("no target revisit within a path", func(t *testing.T) {
		h := New()
		mustEdge(t, h, "A", "same", "B")
		mustEdge(t, h, "B", "same", "C")
		mustEdge(t, h, "C", "same", "B")
		paths := h.ChainPaths("A", []EdgePattern{{Field: "same"}, {Field: "same"}, {Field: "same"}}, nil)
		assert.Empty(t, paths)
	})

	t.Run("reverse step with same field", func(t *testing.T) {
		h := New()
		mustEdge(t, h, "A", "same", "X")
		mustEdge(t, h, "B", "same", "X")
		require.True(t, h.AddDirectedEdge("C", "X", EdgeAttrs{Field: "sibling", Direction: hierarchy.Same}))
		chain := []EdgePattern{
			{Direction: hierarchy.Same},
			{Direction: hierarchy.Same, Reverse: true, SameFieldAsPrevious: true},
		}

		paths := h.ChainPaths("A", chain, nil)
		ends := make([]string, 0, len(paths))
		for _, p := range paths {
			ends = append(ends, p.End)
		}
		assert.ElementsMatch(t, []string{"A", "B"}, ends)
	})

	t.Run("filter applies to every step", func(t *testing.T) {
		paths := g.ChainPaths("A", []EdgePattern{{}, {}}, ByFields("up", "down"))
		require.Len(t, paths, 1)
		assert.Equal(t, "R", paths[0].End)
	})

	t.Run("degenerate", func(t *testing.T) {
		assert.Nil(t, g.ChainPaths("A", nil, nil))
		assert.Nil(t, g.ChainPaths("missing", []EdgePattern{{}}, nil))
	})
}

func TestDFSAllPaths_Tree(t *testing.T) {
	g := New()
	mustEdge(t, g, "root", "down", "a")
	mustEdge(t, g, "root", "down", "b")
	mustEdge(t, g, "a", "down", "a1")

	ps, err := g.DFSAllPaths(context.Background(), "root")
	require.NoError(t, err)
	assert.False(t, ps.Truncated)
	require.Len(t, ps.Paths, 2)
	assert.Equal(t, []string{"root", "a", "a1"}, ps.Paths[0].Nodes())
	assert.Equal(t, []string{"root", "b"}, ps.Paths[1].Nodes())
}

func TestDFSAllPaths_Compare(t *testing.T) {
	g := New()
	mustEdge(t, g, "root", "down", "a")
	mustEdge(t, g, "root", "down", "b")

	byTargetDesc := func(x, y Edge) int { return strings.Compare(y.Target, x.Target) }
	ps, err := g.DFSAllPaths(context.Background(), "root", WithCompare(byTargetDesc))
	require.NoError(t, err)
	require.Len(t, ps.Paths, 2)
	assert.Equal(t, "b", ps.Paths[0].End())
}

func TestDFSAllPaths_RingTerminates(t *testing.T) {
	g := ring(t, 1000)

	ps, err := g.DFSAllPaths(context.Background(), "0")
	require.NoError(t, err)
	require.NotEmpty(t, ps.Paths)
	assert.LessOrEqual(t, ps.Steps, DefaultMaxSteps)
	for _, p := range ps.Paths {
		assert.NotZero(t, p.Len())
	}
}

func TestDFSAllPaths_StepCeiling(t *testing.T) {
	g := ring(t, 1000)

	ps, err := g.DFSAllPaths(context.Background(), "0", WithMaxSteps(50))
	require.NoError(t, err)
	assert.True(t, ps.Truncated)
	assert.Equal(t, 50, ps.Steps)
	require.Len(t, ps.Paths, 1, "in-progress path is emitted")
	assert.Equal(t, 50, ps.Paths[0].Len())
}

func TestDFSAllPaths_PerPathPolicy(t *testing.T) {
	g := ring(t, 5)

	ps, err := g.DFSAllPaths(context.Background(), "0", WithPolicy(PolicyPerPath))
	require.NoError(t, err)
	assert.False(t, ps.Truncated)
	require.Len(t, ps.Paths, 1)
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, ps.Paths[0].Nodes())
}

func TestDFSAllPaths_Cancelled(t *testing.T) {
	g := ring(t, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ps, err := g.DFSAllPaths(ctx, "0")
	require.NoError(t, err)
	assert.True(t, ps.Truncated)
	assert.Equal(t, contextCheckInterval, ps.Steps)
}

func TestDFSAllPaths_MissingStart(t *testing.T) {
	g := New()
	_, err := g.DFSAllPaths(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestBFSAllPaths_TrailToRoots(t *testing.T) {
	g := New()
	mustEdge(t, g, "leaf", "up", "mid")
	mustEdge(t, g, "leaf", "up", "other")
	mustEdge(t, g, "mid", "up", "root")
	mustEdge(t, g, "root", "up", "beyond")
	mustEdge(t, g, "mid", "same", "noise")

	ps, err := g.BFSAllPaths(context.Background(), "leaf",
		WithFilter(ByFields("up")),
		WithStop(func(id string) bool { return id == "root" }),
	)
	require.NoError(t, err)
	assert.False(t, ps.Truncated)
	assert.Equal(t, [][]string{{"other"}, {"mid", "root"}}, ps.NodeLists())
}

func TestBFSAllPaths_CycleWithinPath(t *testing.T) {
	g := New()
	mustEdge(t, g, "A", "up", "B")
	mustEdge(t, g, "B", "up", "C")
	mustEdge(t, g, "C", "up", "A")

	ps, err := g.BFSAllPaths(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"B", "C"}}, ps.NodeLists())
}

func TestParseRevisitPolicy(t *testing.T) {
	p, err := ParseRevisitPolicy("per_path")
	require.NoError(t, err)
	assert.Equal(t, PolicyPerPath, p)

	p, err = ParseRevisitPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyDefault, p)

	_, err = ParseRevisitPolicy("sometimes")
	assert.Error(t, err)
}
