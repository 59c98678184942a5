// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package listindex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

func TestBuild_ReversedSinglePath(t *testing.T) {
	got := Build([][]string{{"A", "B"}}, Options{Reverse: true}, nil)
	assert.Equal(t, "B\n- A\n", got)
}

func TestBuild_DedupByNodeAndDepth(t *testing.T) {
	paths := [][]string{
		{"R", "A", "X"},
		{"R", "A", "Y"},
		{"R", "B", "X"},
		{"R", "X"},
	}
	got := Build(paths, Options{Indent: "  "}, nil)

	want := strings.Join([]string{
		"R",
		"- A",
		"  - X",
		"  - Y",
		"- B",
		"- X",
		"",
	}, "\n")
	assert.Equal(t, want, got)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	assert.Len(t, lines, 6, "one line per distinct (node, depth) pair")
}

func TestBuild_LinkStyles(t *testing.T) {
	paths := [][]string{{"dir/my note.md", "b.md"}}

	assert.Equal(t, "[[dir/my note.md]]\n- [[b.md]]\n", Build(paths, Options{LinkStyle: LinkWiki}, nil))
	assert.Equal(t, "[my note](dir/my%20note.md)\n- [b](b.md)\n", Build(paths, Options{LinkStyle: LinkMarkdown}, nil))
}

func TestBuild_Aliases(t *testing.T) {
	g := graph.New()
	g.UpsertNode("A", graph.NodeAttrs{Aliases: []string{"Alpha", "First"}})
	g.UpsertNode("B", graph.NodeAttrs{})

	got := Build([][]string{{"A", "B"}}, Options{ShowAliases: true}, g)
	assert.Equal(t, "A (Alpha)\n- B\n", got)
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil, Options{}, nil))
}

func TestParseLinkStyle(t *testing.T) {
	s, err := ParseLinkStyle("")
	require.NoError(t, err)
	assert.Equal(t, LinkPlain, s)

	s, err = ParseLinkStyle("wiki")
	require.NoError(t, err)
	assert.Equal(t, LinkWiki, s)

	_, err = ParseLinkStyle("html")
	assert.True(t, errors.Is(err, ErrUnknownLinkStyle))
}

func TestFromPathSet(t *testing.T) {
	g := graph.New()
	g.AddDirectedEdge("R", "A", graph.EdgeAttrs{Field: "down", Direction: hierarchy.Down})
	g.AddDirectedEdge("A", "X", graph.EdgeAttrs{Field: "down", Direction: hierarchy.Down})
	g.AddDirectedEdge("R", "B", graph.EdgeAttrs{Field: "down", Direction: hierarchy.Down})

	ps, err := g.DFSAllPaths(context.Background(), "R")
	require.NoError(t, err)

	got := Build(FromPathSet(ps), Options{}, g)
	assert.Equal(t, "R\n- A\n\t- X\n- B\n", got)
	assert.Nil(t, FromPathSet(nil))
}
