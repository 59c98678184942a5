// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intake is the contract through which explicit edges enter the graph.
//
// Parsers of note content live outside this module. They implement Source
// and hand over Batches of plain requests: "this node exists", "this note
// links to that one through field f". Apply turns batches into graph
// mutations and returns the problems it found as BuildError records instead
// of failing. Only a Source that cannot read the collection at all is
// fatal.
//
// Two sources ship with the module: ManifestSource reads YAML manifests, and
// Journal replays batches cached in BadgerDB.
package intake

import (
	"context"
	"errors"
	"fmt"
)

// Build error codes.
const (
	CodeEmptyID          = "empty_id"
	CodeUnknownField     = "unknown_field"
	CodeInvalidRequest   = "invalid_request"
	CodeParseFailed      = "parse_failed"
	CodeMalformedChain   = "malformed_chain"
	CodeUnknownDirection = "unknown_direction"
	CodeDuplicateField   = "duplicate_field"
)

// ErrSourceUnavailable wraps a Source failure that aborts a rebuild.
var ErrSourceUnavailable = errors.New("source unavailable")

// BuildError is a non-fatal problem found while building.
type BuildError struct {
	// Path is the document or config location the problem belongs to.
	Path string `json:"path" msgpack:"path"`

	// Code classifies the problem (see the Code constants).
	Code string `json:"code" msgpack:"code"`

	// Message is a human readable description.
	Message string `json:"message" msgpack:"message"`
}

// Error implements the error interface.
func (e BuildError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// EdgeRequest asks for one explicit edge.
type EdgeRequest struct {
	// SourceID is the note the link is written in.
	SourceID string `json:"source_id" msgpack:"source_id"`

	// TargetID is the note being linked to.
	TargetID string `json:"target_id" msgpack:"target_id"`

	// Field is the hierarchy label of the link.
	Field string `json:"field" msgpack:"field"`

	// SourceKind names the producer, e.g. "frontmatter" or "tag_note".
	SourceKind string `json:"source_kind" msgpack:"source_kind"`
}

// NodeRequest declares a node and its attributes.
type NodeRequest struct {
	ID             string   `json:"id" msgpack:"id"`
	Resolved       bool     `json:"resolved" msgpack:"resolved"`
	Aliases        []string `json:"aliases,omitempty" msgpack:"aliases,omitempty"`
	IgnoreInEdges  bool     `json:"ignore_in_edges,omitempty" msgpack:"ignore_in_edges,omitempty"`
	IgnoreOutEdges bool     `json:"ignore_out_edges,omitempty" msgpack:"ignore_out_edges,omitempty"`
}

// Batch is everything one document contributed.
type Batch struct {
	// Path identifies the document (or manifest) the batch came from.
	Path string `json:"path" msgpack:"path"`

	// Nodes are applied before Edges.
	Nodes []NodeRequest `json:"nodes,omitempty" msgpack:"nodes,omitempty"`

	// Edges are the explicit links of the document.
	Edges []EdgeRequest `json:"edges,omitempty" msgpack:"edges,omitempty"`

	// Errors are problems the producer already found.
	Errors []BuildError `json:"errors,omitempty" msgpack:"errors,omitempty"`
}

// Source produces batches of explicit requests.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Collect returns every batch the source knows about. An error means
	// the collection could not be read and aborts the rebuild.
	Collect(ctx context.Context) ([]Batch, error)
}

// CollectAll gathers batches from every source in order.
//
// Errors:
//
//	ErrSourceUnavailable - a source failed; wraps the source error
func CollectAll(ctx context.Context, sources []Source) ([]Batch, error) {
	var out []Batch
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batches, err := src.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.Name(), err)
		}
		out = append(out, batches...)
	}
	return out, nil
}

// StaticSource serves a fixed list of batches. Useful for embedding and
// tests.
type StaticSource struct {
	Label   string
	Batches []Batch
}

// Name implements Source.
func (s StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Collect implements Source.
func (s StaticSource) Collect(context.Context) ([]Batch, error) {
	return append([]Batch(nil), s.Batches...), nil
}
