// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads trailgraph settings from YAML.
//
// A config file describes the hierarchies and field groups, toggles and
// round bounds for the built-in inference rules, custom chain rules,
// traversal ceilings, the default edge sort, list index display options,
// the intake sources and telemetry. Load validates structure with struct
// tags; Compile turns the result into the runtime objects the engines take
// and reports rule-level problems as build errors rather than failing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/hierarchy"
	"github.com/AleutianAI/trailgraph/services/trail/implied"
	"github.com/AleutianAI/trailgraph/services/trail/listindex"
	"github.com/AleutianAI/trailgraph/services/trail/sorter"
	store "github.com/AleutianAI/trailgraph/services/trail/storage/badger"
	"github.com/AleutianAI/trailgraph/services/trail/telemetry"
)

// ErrInvalidConfig wraps every structural problem found by Load or Validate.
var ErrInvalidConfig = errors.New("invalid config")

// configValidate is shared by Validate calls. Validators are safe for
// concurrent use once built.
var configValidate = validator.New()

// Config is the root of a config file.
type Config struct {
	// Hierarchies in registration order. Earlier hierarchies win label
	// collisions.
	Hierarchies []HierarchyConfig `yaml:"hierarchies" json:"hierarchies" validate:"required,min=1,dive"`

	// Groups name sets of field labels.
	Groups map[string][]string `yaml:"groups,omitempty" json:"groups,omitempty"`

	// Implied overrides built-in rules by name.
	Implied map[string]BuiltinConfig `yaml:"implied,omitempty" json:"implied,omitempty" validate:"dive"`

	// CustomRules are additional field-based chain rules.
	CustomRules []RuleConfig `yaml:"custom_rules,omitempty" json:"custom_rules,omitempty" validate:"dive"`

	Traversal TraversalConfig   `yaml:"traversal" json:"traversal"`
	Sort      string            `yaml:"sort" json:"sort"`
	Display   listindex.Options `yaml:"display" json:"display"`
	Sources   SourcesConfig     `yaml:"sources" json:"sources"`
	Server    ServerConfig      `yaml:"server" json:"server"`
	Writeback WritebackConfig   `yaml:"writeback" json:"writeback"`
	Log       LogConfig         `yaml:"log" json:"log"`
	Telemetry telemetry.Config  `yaml:"telemetry" json:"telemetry"`
}

// HierarchyConfig lists the field labels of one hierarchy per direction.
type HierarchyConfig struct {
	Name string   `yaml:"name,omitempty" json:"name,omitempty"`
	Up   []string `yaml:"up,omitempty" json:"up,omitempty" validate:"dive,required"`
	Same []string `yaml:"same,omitempty" json:"same,omitempty" validate:"dive,required"`
	Down []string `yaml:"down,omitempty" json:"down,omitempty" validate:"dive,required"`
	Next []string `yaml:"next,omitempty" json:"next,omitempty" validate:"dive,required"`
	Prev []string `yaml:"prev,omitempty" json:"prev,omitempty" validate:"dive,required"`
}

// Hierarchy converts the config to a hierarchy.Hierarchy.
func (h HierarchyConfig) Hierarchy() hierarchy.Hierarchy {
	out := hierarchy.Hierarchy{Name: h.Name, Fields: make(map[hierarchy.Direction][]string)}
	for dir, labels := range map[hierarchy.Direction][]string{
		hierarchy.Up:   h.Up,
		hierarchy.Same: h.Same,
		hierarchy.Down: h.Down,
		hierarchy.Next: h.Next,
		hierarchy.Prev: h.Prev,
	} {
		if len(labels) > 0 {
			out.Fields[dir] = append([]string(nil), labels...)
		}
	}
	return out
}

// BuiltinConfig overrides one built-in rule. Nil fields keep the default.
type BuiltinConfig struct {
	Enabled          *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Rounds           *int  `yaml:"rounds,omitempty" json:"rounds,omitempty" validate:"omitempty,min=0,max=100"`
	AllowSelfLoops   *bool `yaml:"allow_self_loops,omitempty" json:"allow_self_loops,omitempty"`
	FallbackOpposite *bool `yaml:"fallback_opposite,omitempty" json:"fallback_opposite,omitempty"`
}

// StepConfig is one chain step of a custom rule.
type StepConfig struct {
	Field               string `yaml:"field,omitempty" json:"field,omitempty"`
	Direction           string `yaml:"direction,omitempty" json:"direction,omitempty"`
	Reverse             bool   `yaml:"reverse,omitempty" json:"reverse,omitempty"`
	SameFieldAsPrevious bool   `yaml:"same_field_as_previous,omitempty" json:"same_field_as_previous,omitempty"`
	ExplicitOnly        bool   `yaml:"explicit_only,omitempty" json:"explicit_only,omitempty"`
}

// RuleConfig is a custom chain rule, e.g.
//
//	- name: uncle_is_parent
//	  chain: [{field: up}, {field: same}]
//	  close_field: up
type RuleConfig struct {
	Name           string       `yaml:"name" json:"name" validate:"required"`
	Chain          []StepConfig `yaml:"chain" json:"chain"`
	CloseField     string       `yaml:"close_field,omitempty" json:"close_field,omitempty"`
	CloseDirection string       `yaml:"close_direction,omitempty" json:"close_direction,omitempty"`
	CloseReversed  bool         `yaml:"close_reversed,omitempty" json:"close_reversed,omitempty"`
	Rounds         int          `yaml:"rounds" json:"rounds" validate:"min=0,max=100"`
	Enabled        *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	AllowSelfLoops bool         `yaml:"allow_self_loops,omitempty" json:"allow_self_loops,omitempty"`
}

// TraversalConfig sets the default traversal ceilings.
type TraversalConfig struct {
	MaxSteps    int    `yaml:"max_steps" json:"max_steps" validate:"min=0"`
	MaxRevisits int    `yaml:"max_revisits" json:"max_revisits" validate:"min=0"`
	Policy      string `yaml:"policy,omitempty" json:"policy,omitempty" validate:"omitempty,oneof=default global per_path per-path"`
}

// WalkOptions converts the section to graph options. Zero values fall back
// to the graph defaults.
func (t TraversalConfig) WalkOptions() (graph.WalkOptions, error) {
	opts := graph.DefaultWalkOptions()
	if t.MaxSteps > 0 {
		opts.MaxSteps = t.MaxSteps
	}
	if t.MaxRevisits > 0 {
		opts.MaxRevisits = t.MaxRevisits
	}
	policy, err := graph.ParseRevisitPolicy(t.Policy)
	if err != nil {
		return graph.WalkOptions{}, err
	}
	opts.Policy = policy
	return opts, nil
}

// SourcesConfig lists where explicit edges come from.
type SourcesConfig struct {
	// Manifests are YAML manifest files or directories.
	Manifests []string `yaml:"manifests,omitempty" json:"manifests,omitempty" validate:"dive,required"`

	// Journal enables the badger-backed intake journal when set.
	Journal *store.Config `yaml:"journal,omitempty" json:"journal,omitempty"`

	// WatchDebounce delays a rebuild after the last file change.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`

	// MaxRebuildsPerMinute throttles watcher-triggered rebuilds.
	MaxRebuildsPerMinute int `yaml:"max_rebuilds_per_minute" json:"max_rebuilds_per_minute" validate:"min=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`
}

// WritebackConfig configures implied-edge write-back.
type WritebackConfig struct {
	Dir         string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Concurrency int    `yaml:"concurrency" json:"concurrency" validate:"min=0,max=256"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN ERROR"`
	Dir   string `yaml:"dir,omitempty" json:"dir,omitempty"`
	JSON  bool   `yaml:"json,omitempty" json:"json,omitempty"`
}

// Default returns the built-in configuration: the single up/same/down/
// next/prev hierarchy and every built-in rule at its default setting.
func Default() Config {
	h := hierarchy.Default()
	return Config{
		Hierarchies: []HierarchyConfig{{
			Name: h.Name,
			Up:   h.Fields[hierarchy.Up],
			Same: h.Fields[hierarchy.Same],
			Down: h.Fields[hierarchy.Down],
			Next: h.Fields[hierarchy.Next],
			Prev: h.Fields[hierarchy.Prev],
		}},
		Traversal: TraversalConfig{
			MaxSteps:    graph.DefaultMaxSteps,
			MaxRevisits: graph.DefaultMaxRevisits,
			Policy:      graph.PolicyDefault.String(),
		},
		Sort:    sorter.FieldDefault,
		Display: listindex.Options{Indent: listindex.DefaultIndent, LinkStyle: listindex.LinkPlain},
		Sources: SourcesConfig{
			WatchDebounce:        250 * time.Millisecond,
			MaxRebuildsPerMinute: 30,
		},
		Server:    ServerConfig{Addr: ":8090"},
		Writeback: WritebackConfig{Concurrency: 8},
		Log:       LogConfig{Level: "info"},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path over Default. An empty path returns Default.
//
// Errors:
//
//	ErrInvalidConfig - unknown keys, bad YAML or failed validation
//	os errors - the file cannot be read
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot
// express.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for name := range c.Implied {
		if !implied.IsBuiltin(name) {
			return fmt.Errorf("%w: implied.%s is not a built-in rule", ErrInvalidConfig, name)
		}
	}
	if _, err := sorter.ParseSpec(c.Sort); err != nil {
		return fmt.Errorf("%w: sort: %w", ErrInvalidConfig, err)
	}
	if _, err := listindex.ParseLinkStyle(string(c.Display.LinkStyle)); err != nil {
		return fmt.Errorf("%w: display: %w", ErrInvalidConfig, err)
	}
	if j := c.Sources.Journal; j != nil && !j.InMemory && j.Dir == "" {
		return fmt.Errorf("%w: sources.journal: %w", ErrInvalidConfig, store.ErrPathRequired)
	}
	return nil
}
