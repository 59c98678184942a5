// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package implied

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
)

// Options configures the Engine.
type Options struct {
	// Logger receives per-round debug output. Default: slog.Default()
	Logger *slog.Logger
}

// Option is a functional option for configuring the Engine.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Engine runs inference rules over a graph.
//
// Thread Safety:
//
//	An Engine holds no per-run state and may be shared. Run mutates the
//	graph it is given, which must not be read concurrently.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	options := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	return &Engine{logger: options.Logger}
}

// RoundReport summarises one round.
type RoundReport struct {
	// Round is the 1-based round number.
	Round int `json:"round"`

	// Candidates is the number of edges proposed from the snapshot.
	Candidates int `json:"candidates"`

	// Added maps rule name to the number of edges it added.
	Added map[string]int `json:"added"`
}

// Report summarises an inference run.
type Report struct {
	// Rounds holds one entry per round that ran.
	Rounds []RoundReport `json:"rounds"`

	// FixedPoint is true if a round added nothing before the bound was hit.
	FixedPoint bool `json:"fixed_point"`

	// Inert lists enabled chain rules that expanded to nothing because the
	// registry lacks the labels they reference.
	Inert []string `json:"inert,omitempty"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// Total returns the number of edges added across all rounds.
func (r Report) Total() int {
	n := 0
	for _, rr := range r.Rounds {
		for _, c := range rr.Added {
			n += c
		}
	}
	return n
}

// AddedByKind returns the number of edges each rule added across all rounds.
func (r Report) AddedByKind() map[string]int {
	out := make(map[string]int)
	for _, rr := range r.Rounds {
		for kind, c := range rr.Added {
			out[kind] += c
		}
	}
	return out
}

type candidate struct {
	source string
	target string
	attrs  graph.EdgeAttrs
}

type boundRule struct {
	rule     Rule
	variants []variant
}

// Run applies rules to g until the round bound or a fixed point.
//
// Description:
//
//	The number of rounds is the largest Rounds of any enabled rule. Each
//	round first collects candidates from the unchanged graph, then inserts
//	them. Candidates that collide with an existing triple are dropped by the
//	graph. If a round inserts nothing, later rounds cannot either and the
//	run stops.
//
//	Run is not interrupted by ctx cancellation: a half-derived graph is
//	never handed back. Callers discard superseded results instead.
//
// Inputs:
//
//	ctx - Used for tracing only.
//	g - Graph to extend. Mutated.
//	reg - Registry used to bind labels.
//	rules - Rules to apply. Disabled and inert rules are skipped.
//
// Outputs:
//
//	Report - Per round counts.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, reg *hierarchy.Registry, rules []Rule) Report {
	began := time.Now()
	ctx, span := startRunSpan(ctx, len(rules))
	defer span.End()

	var (
		report    Report
		bound     []boundRule
		maxRounds int
	)
	for _, r := range rules {
		if !r.Enabled || r.Rounds < 1 {
			continue
		}
		br := boundRule{rule: r}
		if r.IsChain() {
			br.variants = expand(r, reg)
			if len(br.variants) == 0 {
				report.Inert = append(report.Inert, r.Name)
				continue
			}
		}
		bound = append(bound, br)
		if r.Rounds > maxRounds {
			maxRounds = r.Rounds
		}
	}

	for round := 1; round <= maxRounds; round++ {
		_, roundSpan := startRoundSpan(ctx, round)

		var candidates []candidate
		for _, br := range bound {
			if br.rule.Rounds < round {
				continue
			}
			switch br.rule.Name {
			case KindOppositeDirection:
				candidates = append(candidates, opposites(g, reg, br.rule, round)...)
			case KindSelfIsSibling:
				candidates = append(candidates, selfLoops(g, reg, round)...)
			default:
				candidates = append(candidates, chainCandidates(g, br, round)...)
			}
		}

		rr := RoundReport{Round: round, Candidates: len(candidates), Added: make(map[string]int)}
		for _, c := range candidates {
			if g.AddDirectedEdge(c.source, c.target, c.attrs) {
				rr.Added[c.attrs.Provenance.(graph.Implied).Kind]++
			}
		}
		report.Rounds = append(report.Rounds, rr)

		added := 0
		for kind, n := range rr.Added {
			added += n
			recordImpliedEdges(ctx, kind, round, n)
		}
		setRoundSpanResult(roundSpan, len(candidates), added)
		roundSpan.End()

		e.logger.Debug("implied round complete",
			slog.Int("round", round),
			slog.Int("candidates", len(candidates)),
			slog.Int("added", added),
		)

		if added == 0 {
			report.FixedPoint = true
			break
		}
	}

	sort.Strings(report.Inert)
	report.Duration = time.Since(began)
	setRunSpanResult(span, len(report.Rounds), report.Total(), report.FixedPoint)
	return report
}

// opposites mirrors every edge of the previous round.
func opposites(g *graph.Graph, reg *hierarchy.Registry, r Rule, round int) []candidate {
	var out []candidate
	for _, e := range g.Edges() {
		if e.Round() != round-1 {
			continue
		}
		field, ok := reg.OppositeField(e.Field)
		if !ok {
			if !r.FallbackOpposite {
				continue
			}
			field = e.Direction.Opposite().String()
		}
		out = append(out, candidate{
			source: e.Target,
			target: e.Source,
			attrs: graph.EdgeAttrs{
				Field:          field,
				Direction:      e.Direction.Opposite(),
				HierarchyIndex: e.HierarchyIndex,
				Provenance:     graph.Implied{Kind: KindOppositeDirection, Round: round},
			},
		})
	}
	return out
}

// selfLoops proposes a same-direction self loop per node and hierarchy.
func selfLoops(g *graph.Graph, reg *hierarchy.Registry, round int) []candidate {
	var out []candidate
	for _, n := range g.Nodes() {
		for hi := range reg.Hierarchies() {
			field, ok := reg.FirstField(hi, hierarchy.Same)
			if !ok {
				continue
			}
			out = append(out, candidate{
				source: n.ID,
				target: n.ID,
				attrs: graph.EdgeAttrs{
					Field:          field,
					Direction:      hierarchy.Same,
					HierarchyIndex: hi,
					Provenance:     graph.Implied{Kind: KindSelfIsSibling, Round: round},
				},
			})
		}
	}
	return out
}

// chainCandidates closes every full-length chain path of every variant.
func chainCandidates(g *graph.Graph, br boundRule, round int) []candidate {
	var out []candidate
	for _, n := range g.Nodes() {
		for _, v := range br.variants {
			for _, p := range g.ChainPaths(n.ID, v.chain, nil) {
				source, target := p.Start, p.End
				if br.rule.CloseReversed {
					source, target = target, source
				}
				if source == target && !br.rule.AllowSelfLoops {
					continue
				}
				out = append(out, candidate{
					source: source,
					target: target,
					attrs: graph.EdgeAttrs{
						Field:          v.closeField,
						Direction:      v.closeDirection,
						HierarchyIndex: v.hierarchyIndex,
						Provenance:     graph.Implied{Kind: br.rule.Name, Round: round},
					},
				})
			}
		}
	}
	return out
}
