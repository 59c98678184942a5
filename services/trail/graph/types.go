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

	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// Provenance records where an edge came from.
//
// It is a closed union: the only implementations are Explicit and Implied.
// Use a type switch to handle both.
type Provenance interface {
	provenance()
}

// Explicit marks an edge declared by an external source.
type Explicit struct {
	// SourceKind names the producer (e.g. "frontmatter", "tag_note", "list_note").
	SourceKind string
}

func (Explicit) provenance() {}

// Implied marks an edge derived by the inference engine.
type Implied struct {
	// Kind names the rule that produced the edge.
	Kind string

	// Round is the derivation round (1-based; 0 for closure passes).
	Round int
}

func (Implied) provenance() {}

// NodeAttrs are the mergeable attributes of a node.
type NodeAttrs struct {
	// Resolved is true when the document actually exists.
	Resolved bool

	// Aliases are alternative display names.
	Aliases []string

	// IgnoreInEdges rejects every edge pointing at this node.
	IgnoreInEdges bool

	// IgnoreOutEdges rejects every edge leaving this node.
	IgnoreOutEdges bool
}

// Node is a document tracked by the graph.
type Node struct {
	NodeAttrs

	// ID is the document path.
	ID string

	// Order is the insertion sequence number. Preserved by Subgraph and
	// RenameNode so listings stay stable.
	Order int
}

// FirstAlias returns the first alias or "".
func (n Node) FirstAlias() string {
	if len(n.Aliases) == 0 {
		return ""
	}
	return n.Aliases[0]
}

// EdgeID is the identity of an edge. At most one edge exists per EdgeID.
type EdgeID struct {
	Source string
	Field  string
	Target string
}

// String renders the identity as "source -[field]-> target".
func (id EdgeID) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", id.Source, id.Field, id.Target)
}

// EdgeAttrs are the attributes supplied when adding an edge.
type EdgeAttrs struct {
	// Field is the label the edge was declared or derived with.
	Field string

	// Direction is the hierarchy direction of Field.
	Direction hierarchy.Direction

	// HierarchyIndex is the hierarchy Field belongs to.
	HierarchyIndex int

	// Provenance is Explicit or Implied. Nil is treated as Explicit{}.
	Provenance Provenance
}

// Edge is a plain record of a directed, labelled relationship.
type Edge struct {
	EdgeAttrs

	// Source is the ID of the node the edge leaves.
	Source string

	// Target is the ID of the node the edge points at.
	Target string
}

// ID returns the edge identity.
func (e Edge) ID() EdgeID {
	return EdgeID{Source: e.Source, Field: e.Field, Target: e.Target}
}

// IsExplicit reports whether the edge was declared by a source.
func (e Edge) IsExplicit() bool {
	switch e.Provenance.(type) {
	case Implied:
		return false
	default:
		return true
	}
}

// Kind returns the source kind of an explicit edge or the rule kind of an
// implied edge.
func (e Edge) Kind() string {
	switch p := e.Provenance.(type) {
	case Explicit:
		return p.SourceKind
	case Implied:
		return p.Kind
	default:
		return ""
	}
}

// Round returns the derivation round. Explicit edges are round 0.
func (e Edge) Round() int {
	if p, ok := e.Provenance.(Implied); ok {
		return p.Round
	}
	return 0
}

// IsSelfLoop reports whether the edge points back at its source.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// String renders the edge for logs and errors.
func (e Edge) String() string {
	return e.ID().String()
}

// mergeAttrs merges b into a. Values only ever get stronger: flags are
// OR-ed and aliases are unioned in first-seen order.
func mergeAttrs(a, b NodeAttrs) NodeAttrs {
	out := a
	out.Resolved = a.Resolved || b.Resolved
	out.IgnoreInEdges = a.IgnoreInEdges || b.IgnoreInEdges
	out.IgnoreOutEdges = a.IgnoreOutEdges || b.IgnoreOutEdges

	if len(b.Aliases) > 0 {
		seen := make(map[string]struct{}, len(a.Aliases)+len(b.Aliases))
		merged := make([]string, 0, len(a.Aliases)+len(b.Aliases))
		for _, list := range [][]string{a.Aliases, b.Aliases} {
			for _, alias := range list {
				if alias == "" {
					continue
				}
				if _, dup := seen[alias]; dup {
					continue
				}
				seen[alias] = struct{}{}
				merged = append(merged, alias)
			}
		}
		out.Aliases = merged
	} else {
		out.Aliases = append([]string(nil), a.Aliases...)
	}
	return out
}
