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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
	"github.com/AleutianAI/trailgraph/services/trail/listindex"
)

const fullConfig = `
hierarchies:
  - name: family
    up: [parent, up]
    same: [sibling]
    down: [child]
    next: [next]
    prev: [prev]
  - name: taxonomy
    up: [genus]
    down: [species, child]
groups:
  ancestry: [parent, genus]
implied:
  self_is_sibling:
    enabled: true
  same_parent_is_sibling:
    rounds: 3
custom_rules:
  - name: uncle_is_parent
    chain: [{field: parent}, {field: sibling}]
    close_field: parent
  - name: sideways
    chain: [{direction: sideways}]
    close_direction: same
  - name: opposite_direction
    chain: [{field: parent}]
    close_field: child
  - name: no_close
    chain: [{field: parent}]
traversal:
  max_steps: 500
  policy: per_path
sort: -basename
display:
  indent: "  "
  link_style: wiki
sources:
  manifests: [notes/]
  watch_debounce: 1s
  journal:
    dir: /tmp/journal
`

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	compiled, err := Compile(cfg)
	require.NoError(t, err)
	assert.Empty(t, compiled.Errors)
	assert.Equal(t, implied.Builtins(), compiled.Rules)
	assert.Equal(t, graph.DefaultMaxSteps, compiled.Walk.MaxSteps)
	assert.Equal(t, graph.PolicyDefault, compiled.Walk.Policy)

	info, ok := compiled.Registry.Lookup("down")
	require.True(t, ok)
	assert.Equal(t, hierarchy.Down, info.Direction)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Full(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Hierarchies, 2)
	assert.Equal(t, time.Second, cfg.Sources.WatchDebounce)
	assert.Equal(t, 30, cfg.Sources.MaxRebuildsPerMinute, "defaults survive")
	assert.Equal(t, listindex.LinkWiki, cfg.Display.LinkStyle)
	require.NotNil(t, cfg.Sources.Journal)
	assert.Equal(t, "/tmp/journal", cfg.Sources.Journal.Dir)

	compiled, err := Compile(cfg)
	require.NoError(t, err)

	assert.Equal(t, 500, compiled.Walk.MaxSteps)
	assert.Equal(t, graph.DefaultMaxRevisits, compiled.Walk.MaxRevisits)
	assert.Equal(t, graph.PolicyPerPath, compiled.Walk.Policy)
	assert.Equal(t, "basename", compiled.Sort.Field)
	assert.Equal(t, -1, compiled.Sort.Order)
	assert.Equal(t, []string{"parent", "genus"}, compiled.Registry.ResolveGroup("ancestry"))

	codes := make(map[string]string)
	for _, e := range compiled.Errors {
		codes[e.Path+" "+e.Code] = e.Message
	}
	assert.Contains(t, codes, "config:hierarchies duplicate_field")
	assert.Contains(t, codes, "config:custom_rules[1] unknown_direction")
	assert.Contains(t, codes, "config:custom_rules[2] malformed_chain")
	assert.Contains(t, codes, "config:custom_rules[3] malformed_chain")
	assert.Len(t, compiled.Errors, 4)

	byName := make(map[string]implied.Rule)
	for _, r := range compiled.Rules {
		byName[r.Name] = r
	}
	assert.True(t, byName[implied.KindSelfIsSibling].Enabled)
	assert.Equal(t, 3, byName[implied.KindSameParentIsSibling].Rounds)

	uncle, ok := byName["uncle_is_parent"]
	require.True(t, ok)
	assert.True(t, uncle.Enabled)
	assert.Equal(t, 1, uncle.Rounds)
	assert.Equal(t, []graph.EdgePattern{{Field: "parent"}, {Field: "sibling"}}, uncle.Chain)
	assert.NotContains(t, byName, "sideways")
	assert.NotContains(t, byName, "no_close")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: blue\n"},
		{"bad yaml", "hierarchies: [\n"},
		{"no hierarchies", "hierarchies: []\n"},
		{"empty label", "hierarchies:\n  - up: ['']\n"},
		{"unknown builtin", "implied:\n  grandparent_is_parent: {enabled: true}\n"},
		{"negative rounds", "implied:\n  cousin_is_sibling: {rounds: -1}\n"},
		{"bad policy", "traversal: {policy: sometimes}\n"},
		{"bad sort", "sort: colour\n"},
		{"bad link style", "display: {link_style: html}\n"},
		{"journal without dir", "sources: {journal: {sync_writes: true}}\n"},
		{"nameless rule", "custom_rules:\n  - chain: [{field: up}]\n    close_field: up\n"},
		{"bad exporter", "telemetry: {trace_exporter: zipkin}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), err.Error())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRuleConfig_Rule(t *testing.T) {
	disabled := false
	rule := RuleConfig{
		Name:           "mirror",
		Chain:          []StepConfig{{Direction: "same"}, {Direction: "same", Reverse: true, SameFieldAsPrevious: true}},
		CloseDirection: "same",
		CloseReversed:  true,
		Rounds:         2,
		Enabled:        &disabled,
	}.Rule()

	assert.False(t, rule.Enabled)
	assert.Equal(t, 2, rule.Rounds)
	assert.True(t, rule.CloseReversed)
	assert.True(t, rule.Chain[1].Reverse)
	assert.NoError(t, rule.Validate())
}

func TestCompile_BuildErrorCodes(t *testing.T) {
	cfg := Default()
	cfg.CustomRules = []RuleConfig{{Name: "empty"}}

	compiled, err := Compile(cfg)
	require.NoError(t, err)
	require.Len(t, compiled.Errors, 1)
	assert.Equal(t, intake.CodeMalformedChain, compiled.Errors[0].Code)
}
