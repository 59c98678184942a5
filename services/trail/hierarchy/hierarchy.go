// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy maps field labels to directions and hierarchies.
//
// A hierarchy is a set of five canonical directions (up, same, down, next,
// prev), each carrying one or more field labels. Field labels are what
// authors write in their notes ("parent", "child", "sibling"); the registry
// resolves a label back to the hierarchy and direction it belongs to.
//
// # Collisions
//
// A label must belong to exactly one (hierarchy, direction) pair. When the
// same label is registered more than once the first registration wins and
// every later one is reported as a Conflict.
//
// # Thread Safety
//
// A Registry is immutable after NewRegistry returns and is safe for
// concurrent reads.
package hierarchy

import "fmt"

// Direction is one of the five canonical hierarchy directions.
type Direction string

const (
	// Up points from a note to its parent.
	Up Direction = "up"

	// Same points from a note to a sibling.
	Same Direction = "same"

	// Down points from a note to a child.
	Down Direction = "down"

	// Next points from a note to its successor in a sequence.
	Next Direction = "next"

	// Prev points from a note to its predecessor in a sequence.
	Prev Direction = "prev"
)

// Directions lists the canonical directions in display order.
var Directions = []Direction{Up, Same, Down, Next, Prev}

// opposites is the fixed opposite-direction mapping.
var opposites = map[Direction]Direction{
	Up:   Down,
	Down: Up,
	Same: Same,
	Next: Prev,
	Prev: Next,
}

// Opposite returns the opposite direction.
//
// up and down swap, next and prev swap, same maps to itself. An unknown
// direction is returned unchanged.
func (d Direction) Opposite() Direction {
	if o, ok := opposites[d]; ok {
		return o
	}
	return d
}

// Valid reports whether d is one of the canonical directions.
func (d Direction) Valid() bool {
	_, ok := opposites[d]
	return ok
}

// String returns the direction label.
func (d Direction) String() string {
	return string(d)
}

// ParseDirection converts a label into a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
	return d, nil
}

// Hierarchy is one named structure of direction -> field labels.
type Hierarchy struct {
	// Name is a display name. Optional.
	Name string

	// Fields maps each direction to its field labels in priority order.
	// The first label of a direction is the one used when the engine needs
	// to synthesize an edge in that direction.
	Fields map[Direction][]string
}

// FieldsOf returns the labels registered for dir, or nil.
func (h Hierarchy) FieldsOf(dir Direction) []string {
	return h.Fields[dir]
}

// Default returns the conventional single hierarchy whose field labels equal
// the direction names.
func Default() Hierarchy {
	return Hierarchy{
		Name: "default",
		Fields: map[Direction][]string{
			Up:   {"up"},
			Same: {"same"},
			Down: {"down"},
			Next: {"next"},
			Prev: {"prev"},
		},
	}
}
