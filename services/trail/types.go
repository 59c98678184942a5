// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trail

import (
	"time"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
)

// =============================================================================
// VIEWS
// =============================================================================

// EdgeView is the wire form of a graph edge.
type EdgeView struct {
	// Source is the node the edge leaves.
	Source string `json:"source"`

	// Target is the node the edge points at.
	Target string `json:"target"`

	// Field is the edge label.
	Field string `json:"field"`

	// Direction is the canonical direction of the label.
	Direction string `json:"direction"`

	// Explicit is true for declared edges.
	Explicit bool `json:"explicit"`

	// Kind is the source kind of an explicit edge or the rule of an
	// implied one.
	Kind string `json:"kind"`

	// Round is the derivation round. Zero for explicit edges.
	Round int `json:"round"`
}

func newEdgeView(e graph.Edge) EdgeView {
	return EdgeView{
		Source:    e.Source,
		Target:    e.Target,
		Field:     e.Field,
		Direction: e.Direction.String(),
		Explicit:  e.IsExplicit(),
		Kind:      e.Kind(),
		Round:     e.Round(),
	}
}

// NodeView is the wire form of a node.
type NodeView struct {
	ID       string   `json:"id"`
	Resolved bool     `json:"resolved"`
	Aliases  []string `json:"aliases,omitempty"`
}

func newNodeView(n graph.Node) NodeView {
	return NodeView{ID: n.ID, Resolved: n.Resolved, Aliases: n.Aliases}
}

// =============================================================================
// REQUESTS AND RESPONSES
// =============================================================================

// NeighboursResponse is returned by GET /v1/trail/neighbours/*id.
type NeighboursResponse struct {
	// BuildID identifies the graph the answer came from.
	BuildID string `json:"build_id"`

	// Node is the queried node.
	Node NodeView `json:"node"`

	// Neighbours maps every direction to the sorted out-edges in it.
	Neighbours map[string][]EdgeView `json:"neighbours"`
}

// TraverseRequest is the body of POST /v1/trail/traverse.
type TraverseRequest struct {
	// Start is the node to walk from.
	Start string `json:"start" binding:"required"`

	// Strategy is "dfs" (default) or "bfs".
	Strategy string `json:"strategy,omitempty"`

	// Fields restricts the walk to labels. Group and direction names are
	// expanded. Empty follows every label.
	Fields []string `json:"fields,omitempty"`

	// ExplicitOnly ignores implied edges.
	ExplicitOnly bool `json:"explicit_only,omitempty"`

	// MaxSteps overrides the configured step ceiling when positive.
	MaxSteps int `json:"max_steps,omitempty"`

	// MaxRevisits overrides the configured revisit cap when positive.
	MaxRevisits int `json:"max_revisits,omitempty"`

	// Policy overrides the revisit policy: global, per_path or default.
	Policy string `json:"policy,omitempty"`

	// StopAt ends paths at these nodes.
	StopAt []string `json:"stop_at,omitempty"`
}

// TraverseResponse is returned by POST /v1/trail/traverse.
type TraverseResponse struct {
	BuildID  string `json:"build_id"`
	Start    string `json:"start"`
	Strategy string `json:"strategy"`

	// Paths are node lists excluding the start, in emission order.
	Paths [][]string `json:"paths"`

	// Steps is the number of frontier expansions.
	Steps int `json:"steps"`

	// Truncated is true if a ceiling cut the walk short.
	Truncated bool `json:"truncated"`
}

// TrailResponse is returned by GET /v1/trail/trail/*id.
type TrailResponse struct {
	BuildID string `json:"build_id"`
	ID      string `json:"id"`

	// Trails are the routes from the node up to each reachable root,
	// nearest ancestor first. The node itself is not included.
	Trails [][]string `json:"trails"`

	Truncated bool `json:"truncated"`
}

// IndexRequest describes a rendered list index.
type IndexRequest struct {
	// ID is the root of the index.
	ID string `json:"id"`

	// Direction selects which labels to follow. Default: down.
	Direction string `json:"direction,omitempty"`

	// LinkStyle overrides the configured link style when set.
	LinkStyle string `json:"link_style,omitempty"`

	// Indent overrides the configured indent when set.
	Indent string `json:"indent,omitempty"`

	// ShowAliases overrides the configured alias display when set.
	ShowAliases *bool `json:"show_aliases,omitempty"`

	// Reverse renders paths leaf-first. Default: true for up, false otherwise.
	Reverse *bool `json:"reverse,omitempty"`

	// ExplicitOnly ignores implied edges.
	ExplicitOnly bool `json:"explicit_only,omitempty"`
}

// IndexResponse is returned by GET /v1/trail/index/*id.
type IndexResponse struct {
	BuildID   string `json:"build_id"`
	ID        string `json:"id"`
	Direction string `json:"direction"`

	// Text is the rendered nested list.
	Text string `json:"text"`

	// Paths are the node lists the text was rendered from.
	Paths [][]string `json:"paths"`

	Truncated bool `json:"truncated"`
}

// StatsResponse is returned by GET /v1/trail/stats and POST /v1/trail/rebuild.
type StatsResponse struct {
	BuildID    string            `json:"build_id"`
	Generation uint64            `json:"generation"`
	BuiltAt    time.Time         `json:"built_at"`
	DurationMs int64             `json:"duration_ms"`
	Graph      graph.Stats       `json:"graph"`
	Intake     intake.ApplyStats `json:"intake"`
	Inference  implied.Report    `json:"inference"`
	ErrorCount int               `json:"error_count"`
}

// ErrorsResponse is returned by GET /v1/trail/errors.
type ErrorsResponse struct {
	BuildID string              `json:"build_id"`
	Errors  []intake.BuildError `json:"errors"`
}

// HealthResponse is returned by GET /v1/trail/health.
type HealthResponse struct {
	// Status is "healthy" once a graph is live, "starting" before.
	Status  string `json:"status"`
	Version string `json:"version"`
	BuildID string `json:"build_id,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
