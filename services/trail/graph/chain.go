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

// ChainPath is one match of a chain query.
type ChainPath struct {
	// Start is the node the chain was evaluated from.
	Start string

	// End is the node reached after the last step.
	End string

	// Edges holds one edge per chain step, in order.
	Edges []Edge
}

// ChainPaths returns every path from start whose edges match chain in order.
//
// Description:
//
//	Step i follows an edge (an out-edge, or an in-edge when the pattern is
//	Reverse) that passes filter and matches chain[i]. A node reached by a
//	step is not entered again later in the same path; the start node is not
//	part of that set, so a chain may end back at start and callers decide
//	whether to keep such results. Paths shorter than the chain are discarded.
//
// Inputs:
//
//	start - Node to evaluate from.
//	chain - Ordered patterns. Empty chains match nothing.
//	filter - Optional edge filter applied to every step. May be nil.
//
// Outputs:
//
//	[]ChainPath - Matches in edge insertion order. Nil if none.
//
// Complexity:
//
//	O(d^k) for out-degree d and chain length k. Chains are short (2-3).
func (g *Graph) ChainPaths(start string, chain []EdgePattern, filter EdgeFilter) []ChainPath {
	if len(chain) == 0 || !g.HasNode(start) {
		return nil
	}

	var (
		results []ChainPath
		steps   = make([]Edge, 0, len(chain))
		visited = make(map[string]struct{}, len(chain))
	)

	var extend func(node string, i int)
	extend = func(node string, i int) {
		if i == len(chain) {
			results = append(results, ChainPath{
				Start: start,
				End:   node,
				Edges: append([]Edge(nil), steps...),
			})
			return
		}

		p := chain[i]
		candidates := g.out[node]
		if p.Reverse {
			candidates = g.in[node]
		}

		for _, id := range candidates {
			ep, ok := g.edges[id]
			if !ok {
				continue
			}
			e := *ep
			if filter != nil && !filter(e) {
				continue
			}
			if !p.Matches(e) {
				continue
			}
			if p.SameFieldAsPrevious && i > 0 && e.Field != steps[i-1].Field {
				continue
			}

			next := e.Target
			if p.Reverse {
				next = e.Source
			}
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			steps = append(steps, e)
			extend(next, i+1)
			steps = steps[:len(steps)-1]
			delete(visited, next)
		}
	}

	extend(start, 0)
	return results
}
