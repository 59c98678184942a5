// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
	"github.com/AleutianAI/trailgraph/services/trail/sorter"
)

// Locations used as BuildError paths for config problems.
const (
	pathHierarchies = "config:hierarchies"
	pathCustomRules = "config:custom_rules"
)

// Compiled holds the runtime objects derived from a Config.
type Compiled struct {
	// Registry resolves field labels.
	Registry *hierarchy.Registry

	// Rules are the built-ins with overrides applied, followed by the
	// custom rules that compiled.
	Rules []implied.Rule

	// Walk holds the default traversal options.
	Walk graph.WalkOptions

	// Sort is the default edge sort.
	Sort sorter.Spec

	// Errors are label collisions and rejected custom rules.
	Errors []intake.BuildError
}

// Compile turns cfg into runtime objects.
//
// Description:
//
//	Label collisions between hierarchies keep the first registration and
//	are reported as duplicate_field. A custom rule that names a direction
//	outside the canonical five is reported as unknown_direction; any other
//	shape problem, or a name already taken, is malformed_chain. Rejected
//	rules are skipped and the rest still compile. A custom rule with zero
//	rounds runs for one.
//
// Errors:
//
//	Only the traversal policy and sort spec can fail outright, and Validate
//	has already rejected both for a loaded config.
func Compile(cfg Config) (Compiled, error) {
	hs := make([]hierarchy.Hierarchy, len(cfg.Hierarchies))
	for i, h := range cfg.Hierarchies {
		hs[i] = h.Hierarchy()
	}
	reg, conflicts := hierarchy.NewRegistry(hs, cfg.Groups)

	out := Compiled{Registry: reg}
	for _, c := range conflicts {
		out.Errors = append(out.Errors, intake.BuildError{
			Path:    pathHierarchies,
			Code:    intake.CodeDuplicateField,
			Message: c.Error(),
		})
	}

	walk, err := cfg.Traversal.WalkOptions()
	if err != nil {
		return Compiled{}, fmt.Errorf("traversal: %w", err)
	}
	out.Walk = walk

	spec, err := sorter.ParseSpec(cfg.Sort)
	if err != nil {
		return Compiled{}, fmt.Errorf("sort: %w", err)
	}
	out.Sort = spec

	taken := make(map[string]bool)
	for _, r := range implied.Builtins() {
		if o, ok := cfg.Implied[r.Name]; ok {
			r = o.apply(r)
		}
		out.Rules = append(out.Rules, r)
		taken[r.Name] = true
	}

	for i, rc := range cfg.CustomRules {
		path := fmt.Sprintf("%s[%d]", pathCustomRules, i)
		if taken[rc.Name] {
			out.Errors = append(out.Errors, intake.BuildError{
				Path:    path,
				Code:    intake.CodeMalformedChain,
				Message: fmt.Sprintf("rule name %q is already defined", rc.Name),
			})
			continue
		}
		rule := rc.Rule()
		if err := rule.Validate(); err != nil {
			code := intake.CodeMalformedChain
			if errors.Is(err, hierarchy.ErrUnknownDirection) {
				code = intake.CodeUnknownDirection
			}
			out.Errors = append(out.Errors, intake.BuildError{Path: path, Code: code, Message: err.Error()})
			continue
		}
		taken[rc.Name] = true
		out.Rules = append(out.Rules, rule)
	}

	return out, nil
}

func (o BuiltinConfig) apply(r implied.Rule) implied.Rule {
	if o.Enabled != nil {
		r.Enabled = *o.Enabled
	}
	if o.Rounds != nil {
		r.Rounds = *o.Rounds
	}
	if o.AllowSelfLoops != nil {
		r.AllowSelfLoops = *o.AllowSelfLoops
	}
	if o.FallbackOpposite != nil {
		r.FallbackOpposite = *o.FallbackOpposite
	}
	return r
}

// Rule converts the config to an implied.Rule without validating it.
func (rc RuleConfig) Rule() implied.Rule {
	chain := make([]graph.EdgePattern, len(rc.Chain))
	for i, s := range rc.Chain {
		chain[i] = graph.EdgePattern{
			Field:               s.Field,
			Direction:           hierarchy.Direction(s.Direction),
			Reverse:             s.Reverse,
			SameFieldAsPrevious: s.SameFieldAsPrevious,
			ExplicitOnly:        s.ExplicitOnly,
		}
	}
	rounds := rc.Rounds
	if rounds == 0 {
		rounds = 1
	}
	enabled := true
	if rc.Enabled != nil {
		enabled = *rc.Enabled
	}
	return implied.Rule{
		Name:           rc.Name,
		Chain:          chain,
		CloseField:     rc.CloseField,
		CloseDirection: hierarchy.Direction(rc.CloseDirection),
		CloseReversed:  rc.CloseReversed,
		Rounds:         rounds,
		Enabled:        enabled,
		AllowSelfLoops: rc.AllowSelfLoops,
	}
}
