// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intake

import (
	"fmt"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// DefaultSourceKind is recorded for edge requests without a SourceKind.
const DefaultSourceKind = "explicit"

// ApplyStats counts what Apply did.
type ApplyStats struct {
	// Batches is the number of batches applied.
	Batches int `json:"batches"`

	// NodeRequests is the number of node requests seen.
	NodeRequests int `json:"node_requests"`

	// EdgeRequests is the number of edge requests seen.
	EdgeRequests int `json:"edge_requests"`

	// EdgesAdded is the number of edges inserted.
	EdgesAdded int `json:"edges_added"`

	// EdgesRejected counts requests the graph refused: duplicates of an
	// existing edge or links into or out of ignoring nodes. Not errors.
	EdgesRejected int `json:"edges_rejected"`

	// Errors is the number of BuildErrors returned.
	Errors int `json:"errors"`
}

// Apply feeds batches into g.
//
// Description:
//
//	For each batch the node requests are upserted first, so ignore flags
//	are in place before any edge is tried, then each edge request is
//	resolved against reg and added. Producer errors carried by the batch
//	are passed through. Nothing here aborts: every problem becomes a
//	BuildError and the remaining requests still apply.
//
// Inputs:
//
//	g - Graph to populate. Mutated.
//	reg - Registry used to resolve edge fields.
//	batches - Batches to apply, in order.
//
// Outputs:
//
//	ApplyStats - Counters.
//	[]BuildError - Problems, in the order found.
func Apply(g *graph.Graph, reg *hierarchy.Registry, batches []Batch) (ApplyStats, []BuildError) {
	var (
		stats ApplyStats
		errs  []BuildError
	)

	for _, b := range batches {
		stats.Batches++
		errs = append(errs, b.Errors...)

		for _, n := range b.Nodes {
			stats.NodeRequests++
			if n.ID == "" {
				errs = append(errs, BuildError{Path: b.Path, Code: CodeEmptyID, Message: "node request without id"})
				continue
			}
			g.UpsertNode(n.ID, graph.NodeAttrs{
				Resolved:       n.Resolved,
				Aliases:        n.Aliases,
				IgnoreInEdges:  n.IgnoreInEdges,
				IgnoreOutEdges: n.IgnoreOutEdges,
			})
		}

		for _, e := range b.Edges {
			stats.EdgeRequests++
			if e.SourceID == "" || e.TargetID == "" {
				errs = append(errs, BuildError{
					Path:    b.Path,
					Code:    CodeEmptyID,
					Message: fmt.Sprintf("edge request %q -> %q has an empty endpoint", e.SourceID, e.TargetID),
				})
				continue
			}
			info, ok := reg.Lookup(e.Field)
			if !ok {
				errs = append(errs, BuildError{
					Path:    b.Path,
					Code:    CodeUnknownField,
					Message: fmt.Sprintf("field %q is not in any hierarchy", e.Field),
				})
				continue
			}

			kind := e.SourceKind
			if kind == "" {
				kind = DefaultSourceKind
			}
			added := g.AddDirectedEdge(e.SourceID, e.TargetID, graph.EdgeAttrs{
				Field:          e.Field,
				Direction:      info.Direction,
				HierarchyIndex: info.HierarchyIndex,
				Provenance:     graph.Explicit{SourceKind: kind},
			})
			if added {
				stats.EdgesAdded++
			} else {
				stats.EdgesRejected++
			}
		}
	}

	stats.Errors = len(errs)
	return stats, errs
}
