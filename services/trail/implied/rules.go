// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package implied derives implicit relationships from explicit ones.
//
// The engine applies transitive chain rules in bounded rounds. Round 0 is the
// graph as populated by intake. In round r every enabled rule whose bound is
// at least r is evaluated against the graph as it stood before round r, and
// the resulting candidates are added tagged Implied{Kind, Round: r}. The
// graph refuses duplicate (source, field, target) triples, so a recursive
// rule such as "a sibling's sibling is a sibling" stops producing edges once
// the closure is reached, and the round bound stops it regardless.
//
// Rules come in three shapes:
//
//   - opposite_direction mirrors each edge produced in the previous round.
//   - self_is_sibling adds a same-direction self loop on every node.
//   - Every other rule is a chain rule: a list of edge patterns plus the
//     edge that closes the chain from its start to its end.
//
// Chain rules written with directions instead of fields are expanded once
// per hierarchy, so [up, down] -> same never mixes labels of two
// hierarchies.
package implied

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// Built-in rule names. They double as the implied kind of the edges the rule
// produces.
const (
	KindOppositeDirection      = "opposite_direction"
	KindSelfIsSibling          = "self_is_sibling"
	KindSameParentIsSibling    = "same_parent_is_sibling"
	KindSameSiblingIsSibling   = "same_sibling_is_sibling"
	KindSiblingsParentIsParent = "siblings_parent_is_parent"
	KindParentsSiblingIsParent = "parents_sibling_is_parent"
	KindCousinIsSibling        = "cousin_is_sibling"
	KindSameEdgeIsSibling      = "same_edge_is_sibling"
)

// Sentinel errors for rule validation.
var (
	// ErrMalformedRule is returned when a rule cannot be evaluated.
	ErrMalformedRule = errors.New("malformed rule")
)

// Rule is one inference rule.
type Rule struct {
	// Name identifies the rule and is the implied kind of its edges.
	Name string `json:"name" yaml:"name"`

	// Chain is the ordered list of edge patterns. Ignored by
	// opposite_direction and self_is_sibling.
	Chain []graph.EdgePattern `json:"chain,omitempty" yaml:"-"`

	// CloseField is the label of the closing edge.
	CloseField string `json:"close_field,omitempty" yaml:"close_field"`

	// CloseDirection is used when CloseField is empty. The closing label is
	// the first label of that direction in the hierarchy being expanded.
	CloseDirection hierarchy.Direction `json:"close_direction,omitempty" yaml:"close_direction"`

	// CloseReversed closes the chain from its end to its start.
	CloseReversed bool `json:"close_reversed,omitempty" yaml:"close_reversed"`

	// Rounds is the highest round the rule runs in. Zero makes it inert.
	Rounds int `json:"rounds" yaml:"rounds"`

	// Enabled switches the rule on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// AllowSelfLoops keeps chain results whose start equals their end.
	AllowSelfLoops bool `json:"allow_self_loops,omitempty" yaml:"allow_self_loops"`

	// FallbackOpposite lets opposite_direction synthesize the opposite
	// direction name as a label when the hierarchy has none.
	FallbackOpposite bool `json:"fallback_opposite,omitempty" yaml:"fallback_opposite"`
}

// IsChain reports whether the rule is evaluated through chain paths.
func (r Rule) IsChain() bool {
	return r.Name != KindOppositeDirection && r.Name != KindSelfIsSibling
}

// Validate checks the rule's shape. It does not consult a registry: a rule
// whose fields are unknown is valid and simply produces nothing.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrMalformedRule)
	}
	if r.Rounds < 0 {
		return fmt.Errorf("%w: %s: negative rounds %d", ErrMalformedRule, r.Name, r.Rounds)
	}
	if !r.IsChain() {
		return nil
	}
	if len(r.Chain) == 0 {
		return fmt.Errorf("%w: %s: empty chain", ErrMalformedRule, r.Name)
	}
	for i, p := range r.Chain {
		if p.Field == "" && p.Direction == "" {
			return fmt.Errorf("%w: %s: step %d has neither field nor direction", ErrMalformedRule, r.Name, i)
		}
		if p.Direction != "" && !p.Direction.Valid() {
			return fmt.Errorf("%w: %s: step %d: %w %q", ErrMalformedRule, r.Name, i, hierarchy.ErrUnknownDirection, p.Direction)
		}
	}
	if r.CloseField == "" && r.CloseDirection == "" {
		return fmt.Errorf("%w: %s: no closing field or direction", ErrMalformedRule, r.Name)
	}
	if r.CloseField == "" && !r.CloseDirection.Valid() {
		return fmt.Errorf("%w: %s: closing %w %q", ErrMalformedRule, r.Name, hierarchy.ErrUnknownDirection, r.CloseDirection)
	}
	return nil
}

func dir(d hierarchy.Direction) graph.EdgePattern {
	return graph.EdgePattern{Direction: d}
}

// Builtins returns the built-in rules with their default settings: every
// rule enabled for one round except self_is_sibling.
func Builtins() []Rule {
	return []Rule{
		{Name: KindOppositeDirection, Rounds: 1, Enabled: true},
		{Name: KindSelfIsSibling, Rounds: 1, Enabled: false},
		{
			Name:           KindSameParentIsSibling,
			Chain:          []graph.EdgePattern{dir(hierarchy.Up), dir(hierarchy.Down)},
			CloseDirection: hierarchy.Same,
			Rounds:         1,
			Enabled:        true,
		},
		{
			Name:           KindSameSiblingIsSibling,
			Chain:          []graph.EdgePattern{dir(hierarchy.Same), dir(hierarchy.Same)},
			CloseDirection: hierarchy.Same,
			Rounds:         1,
			Enabled:        true,
		},
		{
			Name:           KindSiblingsParentIsParent,
			Chain:          []graph.EdgePattern{dir(hierarchy.Same), dir(hierarchy.Up)},
			CloseDirection: hierarchy.Up,
			Rounds:         1,
			Enabled:        true,
		},
		{
			Name:           KindParentsSiblingIsParent,
			Chain:          []graph.EdgePattern{dir(hierarchy.Up), dir(hierarchy.Same)},
			CloseDirection: hierarchy.Up,
			Rounds:         1,
			Enabled:        true,
		},
		{
			Name:           KindCousinIsSibling,
			Chain:          []graph.EdgePattern{dir(hierarchy.Up), dir(hierarchy.Same), dir(hierarchy.Down)},
			CloseDirection: hierarchy.Same,
			Rounds:         1,
			Enabled:        true,
		},
		{
			Name: KindSameEdgeIsSibling,
			Chain: []graph.EdgePattern{
				dir(hierarchy.Same),
				{Direction: hierarchy.Same, Reverse: true, SameFieldAsPrevious: true},
			},
			CloseDirection: hierarchy.Same,
			Rounds:         1,
			Enabled:        true,
		},
	}
}

// IsBuiltin reports whether name is a built-in rule.
func IsBuiltin(name string) bool {
	for _, r := range Builtins() {
		if r.Name == name {
			return true
		}
	}
	return false
}

// variant is a rule bound to concrete labels.
type variant struct {
	chain          []graph.EdgePattern
	closeField     string
	closeDirection hierarchy.Direction
	hierarchyIndex int
}

// expand binds a chain rule to the registry.
//
// A rule that references a label the registry does not know expands to
// nothing. Direction-only rules expand once per hierarchy that has a label
// for the closing direction.
func expand(r Rule, reg *hierarchy.Registry) []variant {
	for _, p := range r.Chain {
		if p.Field == "" {
			continue
		}
		if _, ok := reg.Lookup(p.Field); !ok {
			return nil
		}
	}

	if r.CloseField != "" {
		info, ok := reg.Lookup(r.CloseField)
		if !ok {
			return nil
		}
		return []variant{{
			chain:          r.Chain,
			closeField:     r.CloseField,
			closeDirection: info.Direction,
			hierarchyIndex: info.HierarchyIndex,
		}}
	}

	var out []variant
	for hi := range reg.Hierarchies() {
		field, ok := reg.FirstField(hi, r.CloseDirection)
		if !ok {
			continue
		}
		chain := make([]graph.EdgePattern, len(r.Chain))
		for i, p := range r.Chain {
			if p.Field == "" {
				p.Scoped = true
				p.HierarchyIndex = hi
			}
			chain[i] = p
		}
		out = append(out, variant{
			chain:          chain,
			closeField:     field,
			closeDirection: r.CloseDirection,
			hierarchyIndex: hi,
		})
	}
	return out
}
