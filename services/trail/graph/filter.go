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
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// EdgeFilter selects edges. A nil filter accepts everything.
type EdgeFilter func(Edge) bool

// ByFields accepts edges whose field is one of fields.
func ByFields(fields ...string) EdgeFilter {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return func(e Edge) bool {
		_, ok := set[e.Field]
		return ok
	}
}

// ByDirections accepts edges pointing in one of dirs.
func ByDirections(dirs ...hierarchy.Direction) EdgeFilter {
	set := make(map[hierarchy.Direction]struct{}, len(dirs))
	for _, d := range dirs {
		set[d] = struct{}{}
	}
	return func(e Edge) bool {
		_, ok := set[e.Direction]
		return ok
	}
}

// ExplicitOnly accepts declared edges.
func ExplicitOnly() EdgeFilter {
	return func(e Edge) bool { return e.IsExplicit() }
}

// ImpliedKinds accepts implied edges produced by one of kinds.
func ImpliedKinds(kinds ...string) EdgeFilter {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(e Edge) bool {
		p, ok := e.Provenance.(Implied)
		if !ok {
			return false
		}
		_, ok = set[p.Kind]
		return ok
	}
}

// And accepts edges that pass every non-nil filter.
func And(filters ...EdgeFilter) EdgeFilter {
	return func(e Edge) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}

// EdgePattern is a partial description of an edge used by chain queries.
//
// Zero-valued fields are wildcards: EdgePattern{} matches any edge.
type EdgePattern struct {
	// Field, when set, must equal the edge field.
	Field string

	// Direction, when set, must equal the edge direction.
	Direction hierarchy.Direction

	// Scoped restricts the match to edges of hierarchy HierarchyIndex.
	Scoped bool

	// HierarchyIndex is the required hierarchy when Scoped is true.
	HierarchyIndex int

	// ExplicitOnly restricts the match to declared edges.
	ExplicitOnly bool

	// Reverse walks an in-edge instead of an out-edge: the step moves from
	// the current node to the edge's source.
	Reverse bool

	// SameFieldAsPrevious requires the field to equal the previous step's
	// field. Ignored on the first step.
	SameFieldAsPrevious bool
}

// Matches reports whether e satisfies the attribute part of the pattern.
//
// Reverse and SameFieldAsPrevious are positional and are applied by the
// chain query, not here.
func (p EdgePattern) Matches(e Edge) bool {
	if p.Field != "" && p.Field != e.Field {
		return false
	}
	if p.Direction != "" && p.Direction != e.Direction {
		return false
	}
	if p.Scoped && p.HierarchyIndex != e.HierarchyIndex {
		return false
	}
	if p.ExplicitOnly && !e.IsExplicit() {
		return false
	}
	return true
}
