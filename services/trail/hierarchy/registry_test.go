// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyHierarchy() Hierarchy {
	return Hierarchy{
		Name: "family",
		Fields: map[Direction][]string{
			Up:   {"up", "parent"},
			Same: {"same", "sibling"},
			Down: {"down", "child"},
			Next: {"next"},
			Prev: {"prev"},
		},
	}
}

func TestDirection_Opposite(t *testing.T) {
	tests := []struct {
		in   Direction
		want Direction
	}{
		{Up, Down},
		{Down, Up},
		{Same, Same},
		{Next, Prev},
		{Prev, Next},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Opposite())
			assert.Equal(t, tt.in, tt.in.Opposite().Opposite())
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("next")
	require.NoError(t, err)
	assert.Equal(t, Next, d)

	_, err = ParseDirection("sideways")
	assert.True(t, errors.Is(err, ErrUnknownDirection))
}

func TestRegistry_Lookup(t *testing.T) {
	r, conflicts := NewRegistry([]Hierarchy{familyHierarchy()}, nil)
	require.Empty(t, conflicts)

	info, ok := r.Lookup("child")
	require.True(t, ok)
	assert.Equal(t, 0, info.HierarchyIndex)
	assert.Equal(t, Down, info.Direction)
	assert.Equal(t, 1, info.Position)

	_, ok = r.Lookup("cousin")
	assert.False(t, ok)
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	second := Hierarchy{
		Name: "sequence",
		Fields: map[Direction][]string{
			Up:   {"parent"},
			Next: {"after"},
		},
	}

	r, conflicts := NewRegistry([]Hierarchy{familyHierarchy(), second}, nil)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "parent", conflicts[0].Field)
	assert.Equal(t, 0, conflicts[0].Kept.HierarchyIndex)
	assert.Equal(t, 1, conflicts[0].Dropped.HierarchyIndex)
	assert.Contains(t, conflicts[0].Error(), "keeping the first")

	info, ok := r.Lookup("parent")
	require.True(t, ok)
	assert.Equal(t, 0, info.HierarchyIndex)

	info, ok = r.Lookup("after")
	require.True(t, ok)
	assert.Equal(t, 1, info.HierarchyIndex)
}

func TestRegistry_OppositeField(t *testing.T) {
	r, _ := NewRegistry([]Hierarchy{familyHierarchy()}, nil)

	t.Run("same position", func(t *testing.T) {
		got, ok := r.OppositeField("parent")
		require.True(t, ok)
		assert.Equal(t, "child", got)
	})

	t.Run("same direction is its own opposite", func(t *testing.T) {
		got, ok := r.OppositeField("sibling")
		require.True(t, ok)
		assert.Equal(t, "sibling", got)
	})

	t.Run("falls back to first label", func(t *testing.T) {
		h := Hierarchy{Fields: map[Direction][]string{
			Up:   {"up", "parent", "mother"},
			Down: {"down"},
		}}
		r2, _ := NewRegistry([]Hierarchy{h}, nil)
		got, ok := r2.OppositeField("mother")
		require.True(t, ok)
		assert.Equal(t, "down", got)
	})

	t.Run("no opposite configured", func(t *testing.T) {
		h := Hierarchy{Fields: map[Direction][]string{Next: {"next"}}}
		r2, _ := NewRegistry([]Hierarchy{h}, nil)
		_, ok := r2.OppositeField("next")
		assert.False(t, ok)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, ok := r.OppositeField("nope")
		assert.False(t, ok)
	})
}

func TestRegistry_ResolveGroup(t *testing.T) {
	seq := Hierarchy{Fields: map[Direction][]string{Up: {"chapter-of"}}}
	r, _ := NewRegistry(
		[]Hierarchy{familyHierarchy(), seq},
		map[string][]string{"ancestry": {"up", "parent"}},
	)

	assert.Equal(t, []string{"up", "parent"}, r.ResolveGroup("ancestry"))
	assert.Equal(t, []string{"up", "parent", "chapter-of"}, r.ResolveGroup("up"))
	assert.Equal(t, []string{"child"}, r.ResolveGroup("child"))
	assert.Nil(t, r.ResolveGroup("unknown"))
	assert.Equal(t, []string{"ancestry"}, r.Groups())
}

func TestRegistry_FieldsFor(t *testing.T) {
	r, _ := NewRegistry([]Hierarchy{familyHierarchy()}, nil)

	assert.Equal(t, []string{"same", "sibling"}, r.FieldsFor(0, Same))
	assert.Nil(t, r.FieldsFor(3, Same))

	f, ok := r.FirstField(0, Down)
	require.True(t, ok)
	assert.Equal(t, "down", f)

	assert.Equal(t, []string{"up", "parent", "same", "sibling", "down", "child", "next", "prev"}, r.Fields())
}
