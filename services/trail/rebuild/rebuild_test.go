// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
)

func registry(t *testing.T) *hierarchy.Registry {
	t.Helper()
	reg, conflicts := hierarchy.NewRegistry([]hierarchy.Hierarchy{hierarchy.Default()}, nil)
	require.Empty(t, conflicts)
	return reg
}

func link(source, field, target string) intake.Batch {
	return intake.Batch{
		Path:  source,
		Nodes: []intake.NodeRequest{{ID: source, Resolved: true}},
		Edges: []intake.EdgeRequest{{SourceID: source, TargetID: target, Field: field, SourceKind: "test"}},
	}
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Collect(context.Context) ([]intake.Batch, error) {
	return nil, errors.New("vault unmounted")
}

func TestRebuild(t *testing.T) {
	in := Input{
		Registry: registry(t),
		Rules:    implied.Builtins(),
		Sources: []intake.Source{intake.StaticSource{Batches: []intake.Batch{
			link("A", "up", "B"),
			link("C", "mentor", "B"),
		}}},
		BuildErrors: []intake.BuildError{{Path: "config:hierarchies", Code: intake.CodeDuplicateField, Message: "dup"}},
	}

	res, err := Rebuild(context.Background(), in)
	require.NoError(t, err)

	_, err = uuid.Parse(res.BuildID)
	assert.NoError(t, err)

	assert.True(t, res.Graph.HasEdge(graph.EdgeID{Source: "B", Field: "down", Target: "A"}))
	require.Len(t, res.Errors, 2)
	assert.Equal(t, intake.CodeDuplicateField, res.Errors[0].Code, "config errors come first")
	assert.Equal(t, intake.CodeUnknownField, res.Errors[1].Code)
	assert.Equal(t, 1, res.Intake.EdgesAdded)
	assert.Equal(t, 1, res.Inference.AddedByKind()[implied.KindOppositeDirection])
	assert.Equal(t, res.Graph.Stats(), res.Stats)
	assert.False(t, res.BuiltAt.IsZero())
}

func TestRebuild_Pure(t *testing.T) {
	in := Input{
		Registry: registry(t),
		Rules:    implied.Builtins(),
		Sources:  []intake.Source{intake.StaticSource{Batches: []intake.Batch{link("A", "up", "B")}}},
	}

	first, err := Rebuild(context.Background(), in)
	require.NoError(t, err)
	second, err := Rebuild(context.Background(), in)
	require.NoError(t, err)

	assert.NotSame(t, first.Graph, second.Graph)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestRebuild_Errors(t *testing.T) {
	_, err := Rebuild(context.Background(), Input{})
	assert.True(t, errors.Is(err, ErrNilRegistry))

	_, err = Rebuild(context.Background(), Input{
		Registry: registry(t),
		Sources:  []intake.Source{brokenSource{}},
	})
	assert.True(t, errors.Is(err, intake.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "vault unmounted")
}

func TestRebuild_GraphOptions(t *testing.T) {
	res, err := Rebuild(context.Background(), Input{
		Registry:     registry(t),
		Sources:      []intake.Source{intake.StaticSource{Batches: []intake.Batch{link("A", "up", "B"), link("C", "up", "D")}}},
		GraphOptions: []graph.Option{graph.WithMaxEdges(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.EdgeCount)
	assert.Equal(t, 1, res.Intake.EdgesRejected)
}
