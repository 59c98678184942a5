// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the note relationship multigraph and its traversals.
//
// Nodes are documents identified by their path. Edges are directed, labelled
// relationships identified by the triple (source, field, target): two edges
// between the same pair of nodes may coexist only if their fields differ.
//
// # Mutation Model
//
// Mutations never panic and never fail loudly. AddDirectedEdge returns false
// when an edge is rejected (duplicate identity, ignored endpoint, capacity).
// Callers feed the graph from many partially redundant sources and rounds,
// so "not added" is an expected outcome.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use. Build a graph on one goroutine, then
// hand it to readers without mutating it again. Rebuilds construct a fresh
// graph and swap it in rather than mutating a graph that is being read.
//
// # Traversals
//
// All multi-path traversals share one walk primitive bounded by a step
// ceiling and a revisit policy. Hitting a ceiling returns the partial result
// with Truncated set rather than hanging on cyclic input.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned when an operation references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNodeExists is returned when renaming onto an ID that is already taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrEmptyID is returned when a node ID is empty.
	ErrEmptyID = errors.New("empty node id")
)
