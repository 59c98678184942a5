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
	"fmt"
	"sort"
)

// Sentinel errors for registry operations.
var (
	// ErrUnknownDirection is returned when a label is not a canonical direction.
	ErrUnknownDirection = errors.New("unknown direction")

	// ErrUnknownField is returned when a field label is not registered.
	ErrUnknownField = errors.New("unknown field")
)

// FieldInfo describes where a field label lives.
type FieldInfo struct {
	// Field is the label itself.
	Field string

	// HierarchyIndex is the index of the owning hierarchy.
	HierarchyIndex int

	// Direction is the direction the label points in.
	Direction Direction

	// Position is the index of the label within its direction's list.
	Position int
}

// Conflict records a label that was registered more than once.
type Conflict struct {
	// Field is the duplicated label.
	Field string

	// Kept is where the label resolves to (the first registration).
	Kept FieldInfo

	// Dropped is the registration that was ignored.
	Dropped FieldInfo
}

// Error implements the error interface.
func (c Conflict) Error() string {
	return fmt.Sprintf("field %q registered in hierarchy %d (%s) and hierarchy %d (%s); keeping the first",
		c.Field, c.Kept.HierarchyIndex, c.Kept.Direction, c.Dropped.HierarchyIndex, c.Dropped.Direction)
}

// Registry resolves field labels to hierarchies and directions.
type Registry struct {
	hierarchies []Hierarchy
	byField     map[string]FieldInfo
	fields      []string
	groups      map[string][]string
}

// NewRegistry builds a registry from hierarchies and named field groups.
//
// Description:
//
//	Hierarchies are registered in order. Within a hierarchy, directions are
//	registered in canonical order (up, same, down, next, prev). A label that
//	is already registered keeps its first registration and a Conflict is
//	returned for the later one.
//
// Inputs:
//
//	hierarchies - Hierarchy definitions. Copied.
//	groups - Named field groups (group name -> labels). May be nil.
//
// Outputs:
//
//	*Registry - The registry. Never nil.
//	[]Conflict - Label collisions, in registration order.
func NewRegistry(hierarchies []Hierarchy, groups map[string][]string) (*Registry, []Conflict) {
	r := &Registry{
		hierarchies: make([]Hierarchy, 0, len(hierarchies)),
		byField:     make(map[string]FieldInfo),
		groups:      make(map[string][]string, len(groups)),
	}

	var conflicts []Conflict
	for hi, h := range hierarchies {
		copied := Hierarchy{Name: h.Name, Fields: make(map[Direction][]string, len(h.Fields))}
		for _, dir := range Directions {
			labels := h.Fields[dir]
			if len(labels) == 0 {
				continue
			}
			copied.Fields[dir] = append([]string(nil), labels...)
			for pos, label := range labels {
				info := FieldInfo{Field: label, HierarchyIndex: hi, Direction: dir, Position: pos}
				if existing, ok := r.byField[label]; ok {
					conflicts = append(conflicts, Conflict{Field: label, Kept: existing, Dropped: info})
					continue
				}
				r.byField[label] = info
				r.fields = append(r.fields, label)
			}
		}
		r.hierarchies = append(r.hierarchies, copied)
	}

	for name, members := range groups {
		r.groups[name] = append([]string(nil), members...)
	}

	return r, conflicts
}

// Hierarchies returns the registered hierarchies. Callers must not mutate.
func (r *Registry) Hierarchies() []Hierarchy {
	return r.hierarchies
}

// Fields returns every registered label in registration order.
func (r *Registry) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Lookup resolves a field label.
func (r *Registry) Lookup(field string) (FieldInfo, bool) {
	info, ok := r.byField[field]
	return info, ok
}

// FieldsFor returns the labels of hierarchy hi in direction dir.
//
// Returns nil when hi is out of range or the direction has no labels.
func (r *Registry) FieldsFor(hi int, dir Direction) []string {
	if hi < 0 || hi >= len(r.hierarchies) {
		return nil
	}
	return r.hierarchies[hi].Fields[dir]
}

// FirstField returns the primary label of hierarchy hi in direction dir.
func (r *Registry) FirstField(hi int, dir Direction) (string, bool) {
	labels := r.FieldsFor(hi, dir)
	if len(labels) == 0 {
		return "", false
	}
	return labels[0], true
}

// OppositeField returns the label pointing the opposite way of field.
//
// Description:
//
//	Looks in the field's own hierarchy. The label at the same position in
//	the opposite direction is preferred ("parent" -> "child" when both are
//	second in their lists); otherwise the first opposite label is used.
//
// Outputs:
//
//	string - The opposite label.
//	bool - False if field is unknown or its hierarchy has no opposite labels.
func (r *Registry) OppositeField(field string) (string, bool) {
	info, ok := r.byField[field]
	if !ok {
		return "", false
	}
	labels := r.FieldsFor(info.HierarchyIndex, info.Direction.Opposite())
	if len(labels) == 0 {
		return "", false
	}
	if info.Position < len(labels) {
		return labels[info.Position], true
	}
	return labels[0], true
}

// ResolveGroup expands a label into the field labels it stands for.
//
// Resolution order:
//  1. A named group expands to its members.
//  2. A direction name expands to every label of that direction, across
//     all hierarchies, in hierarchy order.
//  3. A registered field expands to itself.
//
// Anything else resolves to nil.
func (r *Registry) ResolveGroup(label string) []string {
	if members, ok := r.groups[label]; ok {
		return append([]string(nil), members...)
	}

	if dir := Direction(label); dir.Valid() {
		var out []string
		for _, h := range r.hierarchies {
			out = append(out, h.Fields[dir]...)
		}
		return out
	}

	if _, ok := r.byField[label]; ok {
		return []string{label}
	}
	return nil
}

// Groups returns the sorted names of the configured field groups.
func (r *Registry) Groups() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
