// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package listindex renders path sets as nested, deduplicated lists.
//
// Each input path is a root-to-leaf list of node IDs. The node at position
// d of a path is printed at depth d. A (node, depth) pair prints once no
// matter how many paths contain it; the same node at another depth prints
// again.
//
// Example output for the paths [B, A] and [B, C]:
//
//	B
//	- A
//	- C
package listindex

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AleutianAI/trailgraph/services/trail/graph"
	"github.com/AleutianAI/trailgraph/services/trail/sorter"
)

// LinkStyle selects how a node is written.
type LinkStyle string

// Link styles.
const (
	// LinkPlain writes the node ID.
	LinkPlain LinkStyle = "plain"

	// LinkWiki writes [[id]].
	LinkWiki LinkStyle = "wiki"

	// LinkMarkdown writes [basename](escaped id).
	LinkMarkdown LinkStyle = "markdown"
)

// ErrUnknownLinkStyle is returned for an unsupported link style.
var ErrUnknownLinkStyle = errors.New("unknown link style")

// ParseLinkStyle parses a link style name. Empty means plain.
func ParseLinkStyle(s string) (LinkStyle, error) {
	switch LinkStyle(s) {
	case "", LinkPlain:
		return LinkPlain, nil
	case LinkWiki, LinkMarkdown:
		return LinkStyle(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLinkStyle, s)
	}
}

// DefaultIndent is the indent unit used when Options.Indent is empty.
const DefaultIndent = "\t"

// Options configures rendering.
type Options struct {
	// Indent is repeated once per nesting level below the first.
	// Default: a tab.
	Indent string `json:"indent" yaml:"indent"`

	// LinkStyle selects the node format. Default: plain.
	LinkStyle LinkStyle `json:"link_style" yaml:"link_style" validate:"omitempty,oneof=plain wiki markdown"`

	// ShowAliases appends " (alias)" using each node's first alias.
	ShowAliases bool `json:"show_aliases" yaml:"show_aliases"`

	// Reverse treats every path as leaf-first and flips it before
	// rendering. DFS output toward parents needs this.
	Reverse bool `json:"reverse" yaml:"reverse"`
}

// NodeLookup resolves node attributes for alias annotation.
//
// *graph.Graph satisfies it.
type NodeLookup interface {
	Node(id string) (graph.Node, bool)
}

// Build renders paths as an indented list.
//
// Description:
//
//	Depth 0 is written bare. Depth d >= 1 is written as Indent repeated
//	d-1 times, then "- ", then the link. Lines are emitted in first-seen
//	order and every line ends with a newline.
//
// Inputs:
//
//	paths - Root-to-leaf node lists (leaf-to-root with Reverse).
//	opts - Rendering options.
//	nodes - Used for aliases. May be nil.
//
// Outputs:
//
//	string - The rendered index. Empty when paths is empty.
func Build(paths [][]string, opts Options, nodes NodeLookup) string {
	if opts.Indent == "" {
		opts.Indent = DefaultIndent
	}

	type key struct {
		id    string
		depth int
	}
	seen := make(map[key]struct{})

	var b strings.Builder
	for _, p := range paths {
		if opts.Reverse {
			p = reversed(p)
		}
		for depth, id := range p {
			k := key{id: id, depth: depth}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}

			if depth > 0 {
				b.WriteString(strings.Repeat(opts.Indent, depth-1))
				b.WriteString("- ")
			}
			b.WriteString(Link(id, opts.LinkStyle))
			if opts.ShowAliases && nodes != nil {
				if n, ok := nodes.Node(id); ok && n.FirstAlias() != "" {
					b.WriteString(" (")
					b.WriteString(n.FirstAlias())
					b.WriteString(")")
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Link formats one node ID.
func Link(id string, style LinkStyle) string {
	switch style {
	case LinkWiki:
		return "[[" + id + "]]"
	case LinkMarkdown:
		return "[" + sorter.Basename(id) + "](" + escapePath(id) + ")"
	default:
		return id
	}
}

// FromPathSet converts traversal output into node lists that start at the
// traversal root.
func FromPathSet(ps *graph.PathSet) [][]string {
	if ps == nil {
		return nil
	}
	out := make([][]string, len(ps.Paths))
	for i, p := range ps.Paths {
		out[i] = p.Nodes()
	}
	return out
}

func reversed(p []string) []string {
	out := make([]string, len(p))
	for i, id := range p {
		out[len(p)-1-i] = id
	}
	return out
}

func escapePath(id string) string {
	segments := strings.Split(id, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
