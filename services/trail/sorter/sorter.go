// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sorter builds edge comparators from declarative sort specs.
package sorter

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
)

// Sort fields.
const (
	FieldDefault  = "default"
	FieldPath     = "path"
	FieldBasename = "basename"
	FieldField    = "field"

	// neighbourPrefix precedes the label in "neighbour:<field>".
	neighbourPrefix = "neighbour:"
)

// ErrUnknownSortField is returned for a sort field that is not supported.
var ErrUnknownSortField = errors.New("unknown sort field")

// Spec is a declarative sort.
type Spec struct {
	// Field is default, path, basename, field or neighbour:<label>.
	Field string `json:"field" yaml:"field"`

	// Order is 1 for ascending and -1 for descending. Zero means 1.
	Order int `json:"order" yaml:"order"`
}

// ParseSpec parses "basename", "-basename", "neighbour:next" and so on. A
// leading "-" selects descending order.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{Field: strings.TrimSpace(s), Order: 1}
	if strings.HasPrefix(spec.Field, "-") {
		spec.Field = spec.Field[1:]
		spec.Order = -1
	}
	if spec.Field == "" {
		spec.Field = FieldDefault
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks the field name.
func (s Spec) Validate() error {
	switch s.Field {
	case FieldDefault, FieldPath, FieldBasename, FieldField:
		return nil
	}
	if label, ok := strings.CutPrefix(s.Field, neighbourPrefix); ok && label != "" {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownSortField, s.Field)
}

// String renders the spec in ParseSpec syntax.
func (s Spec) String() string {
	if s.Order < 0 {
		return "-" + s.Field
	}
	return s.Field
}

type neighbour struct {
	id string
	ok bool
}

// Sorter orders edges according to a Spec.
//
// Thread Safety:
//
//	NOT safe for concurrent use: the neighbour comparator caches lookups.
//	Create one Sorter per goroutine.
type Sorter struct {
	g     *graph.Graph
	spec  Spec
	label string
	cache map[string]neighbour
}

// New creates a Sorter over g.
//
// Errors:
//
//	ErrUnknownSortField - the spec field is not supported
func New(g *graph.Graph, spec Spec) (*Sorter, error) {
	if spec.Order == 0 {
		spec.Order = 1
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	s := &Sorter{g: g, spec: spec}
	if label, ok := strings.CutPrefix(spec.Field, neighbourPrefix); ok {
		s.label = label
		s.cache = make(map[string]neighbour)
	}
	return s, nil
}

// Spec returns the spec the sorter was built from.
func (s *Sorter) Spec() Spec {
	return s.spec
}

// Compare orders a before b when it returns a negative number.
//
// The default field compares everything as equal; Sort handles its
// reversal. Under neighbour:<field>, edges whose target has no such
// neighbour come after those that do regardless of order.
func (s *Sorter) Compare(a, b graph.Edge) int {
	switch s.spec.Field {
	case FieldDefault:
		return 0
	case FieldPath:
		return s.spec.Order * strings.Compare(a.Target, b.Target)
	case FieldBasename:
		return s.spec.Order * strings.Compare(Basename(a.Target), Basename(b.Target))
	case FieldField:
		return s.spec.Order * strings.Compare(a.Field, b.Field)
	}

	na, nb := s.neighbourOf(a.Target), s.neighbourOf(b.Target)
	switch {
	case !na.ok && !nb.ok:
		return 0
	case !na.ok:
		return 1
	case !nb.ok:
		return -1
	}
	return s.spec.Order * strings.Compare(na.id, nb.id)
}

// Sort orders edges in place. The sort is stable.
func (s *Sorter) Sort(edges []graph.Edge) {
	if s.spec.Field == FieldDefault {
		if s.spec.Order < 0 {
			slices.Reverse(edges)
		}
		return
	}
	slices.SortStableFunc(edges, s.Compare)
}

func (s *Sorter) neighbourOf(id string) neighbour {
	if n, ok := s.cache[id]; ok {
		return n
	}
	var n neighbour
	for _, e := range s.g.OutEdges(id) {
		if e.Field == s.label {
			n = neighbour{id: e.Target, ok: true}
			break
		}
	}
	s.cache[id] = n
	return n
}

// Basename returns the last path segment of id without its extension.
func Basename(id string) string {
	base := path.Base(id)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
