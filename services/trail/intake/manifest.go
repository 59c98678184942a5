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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestSourceKind is the default SourceKind of manifest links.
const ManifestSourceKind = "manifest"

// Manifest is the YAML document read by ManifestSource.
//
// Example:
//
//	notes:
//	  - path: notes/child.md
//	    aliases: [Child]
//	    links:
//	      - field: up
//	        target: notes/parent.md
type Manifest struct {
	Notes []ManifestNote `yaml:"notes"`
}

// ManifestNote declares one note and its outgoing links.
type ManifestNote struct {
	Path string `yaml:"path"`

	// Resolved defaults to true: a note listed in a manifest exists.
	Resolved *bool `yaml:"resolved,omitempty"`

	Aliases        []string       `yaml:"aliases,omitempty"`
	IgnoreInEdges  bool           `yaml:"ignore_in_edges,omitempty"`
	IgnoreOutEdges bool           `yaml:"ignore_out_edges,omitempty"`
	Links          []ManifestLink `yaml:"links,omitempty"`
}

// ManifestLink is one explicit link.
type ManifestLink struct {
	Field  string `yaml:"field"`
	Target string `yaml:"target"`

	// Kind overrides the SourceKind recorded on the edge.
	Kind string `yaml:"kind,omitempty"`
}

// ManifestSource reads manifests from files and directories.
//
// Directories are walked recursively for *.yaml and *.yml files. Batches are
// returned one per note, in file-name order and then document order.
type ManifestSource struct {
	paths []string
}

// NewManifestSource creates a source over paths.
func NewManifestSource(paths ...string) *ManifestSource {
	return &ManifestSource{paths: append([]string(nil), paths...)}
}

// Name implements Source.
func (s *ManifestSource) Name() string {
	return "manifest"
}

// Paths returns the configured manifest paths.
func (s *ManifestSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Collect implements Source.
//
// Errors:
//
//	A path that cannot be stat'ed, walked or read is fatal. A file that
//	does not parse becomes a parse_failed record and the rest continue.
func (s *ManifestSource) Collect(ctx context.Context) ([]Batch, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	var out []Batch
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", file, err)
		}
		out = append(out, ParseManifest(file, data)...)
	}
	return out, nil
}

func (s *ManifestSource) files() ([]string, error) {
	var files []string
	for _, p := range s.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat manifest path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if IsManifestFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk manifest dir %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// IsManifestFile reports whether path has a manifest extension.
func IsManifestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseManifest converts one manifest file into batches.
//
// Description:
//
//	Every note yields a batch holding a resolved node request for the note,
//	an unresolved node request per link target, and an edge request per
//	link. A file that fails to parse yields a single batch carrying a
//	parse_failed record. Unknown YAML keys are parse failures. A file may
//	hold several YAML documents.
func ParseManifest(file string, data []byte) []Batch {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var notes []ManifestNote
	for {
		var m Manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return []Batch{{
				Path:   file,
				Errors: []BuildError{{Path: file, Code: CodeParseFailed, Message: err.Error()}},
			}}
		}
		notes = append(notes, m.Notes...)
	}

	out := make([]Batch, 0, len(notes))
	for i, n := range notes {
		if n.Path == "" {
			out = append(out, Batch{
				Path: file,
				Errors: []BuildError{{
					Path:    file,
					Code:    CodeEmptyID,
					Message: fmt.Sprintf("note %d has no path", i),
				}},
			})
			continue
		}
		out = append(out, n.batch())
	}
	return out
}

func (n ManifestNote) batch() Batch {
	resolved := true
	if n.Resolved != nil {
		resolved = *n.Resolved
	}

	b := Batch{
		Path: n.Path,
		Nodes: []NodeRequest{{
			ID:             n.Path,
			Resolved:       resolved,
			Aliases:        n.Aliases,
			IgnoreInEdges:  n.IgnoreInEdges,
			IgnoreOutEdges: n.IgnoreOutEdges,
		}},
	}
	for _, l := range n.Links {
		kind := l.Kind
		if kind == "" {
			kind = ManifestSourceKind
		}
		if l.Target != "" {
			b.Nodes = append(b.Nodes, NodeRequest{ID: l.Target})
		}
		b.Edges = append(b.Edges, EdgeRequest{
			SourceID:   n.Path,
			TargetID:   l.Target,
			Field:      l.Field,
			SourceKind: kind,
		})
	}
	return b
}
