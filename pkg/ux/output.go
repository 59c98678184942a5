// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the trailgraph CLI.
//
// A Printer renders in one of two modes. Rich mode uses the lipgloss palette
// and is chosen when the destination is a terminal. Plain mode writes
// tab-separated, uncoloured text that is stable enough to pipe into other
// tools.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette - deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the rich-mode styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Node    lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Node:    lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// Mode selects how a Printer renders.
type Mode int

const (
	// ModeRich renders with colour and borders.
	ModeRich Mode = iota

	// ModePlain renders uncoloured, tab-separated text.
	ModePlain
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectMode picks ModeRich for terminals unless NO_COLOR is set.
func DetectMode(f *os.File) Mode {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(f) {
		return ModePlain
	}
	return ModeRich
}

// Printer writes styled output.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Writer returns the destination.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Mode returns the render mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

func (p *Printer) rich() bool {
	return p.mode == ModeRich
}

// Title prints a heading. Plain mode prints it bare.
func (p *Printer) Title(text string) {
	if p.rich() {
		fmt.Fprintln(p.w, Styles.Title.Render(text))
		return
	}
	fmt.Fprintln(p.w, text)
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, "OK", Styles.Success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, "WARN", Styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status(IconError, "ERROR", Styles.Error, text)
}

func (p *Printer) status(icon Icon, label string, style lipgloss.Style, text string) {
	if p.rich() {
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", label, text)
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	if !p.rich() {
		fmt.Fprintf(p.w, "%s\n%s\n", title, strings.TrimRight(content, "\n"))
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+strings.TrimRight(content, "\n")))
}

// KeyValues prints aligned "key value" pairs.
func (p *Printer) KeyValues(pairs [][2]string) {
	width := 0
	for _, kv := range pairs {
		width = max(width, lipgloss.Width(kv[0]))
	}
	for _, kv := range pairs {
		if !p.rich() {
			fmt.Fprintf(p.w, "%s\t%s\n", kv[0], kv[1])
			continue
		}
		key := Styles.Muted.Width(width + 2).Render(kv[0])
		fmt.Fprintf(p.w, "%s%s\n", key, kv[1])
	}
}

// Table prints rows under headers with padded columns.
//
// Plain mode writes one tab-separated line per row, headers included.
func (p *Printer) Table(headers []string, rows [][]string) {
	if !p.rich() {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(p.w, strings.Join(r, "\t"))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			out[i] = style.Width(widths[i]).Render(cell)
		}
		return strings.TrimRight(strings.Join(out, "  "), " ")
	}

	fmt.Fprintln(p.w, line(headers, Styles.Header))
	for _, r := range rows {
		fmt.Fprintln(p.w, line(r, lipgloss.NewStyle()))
	}
}

// Index prints a rendered nested list. Rich mode dims the bullets and
// highlights the depth-0 entries.
func (p *Printer) Index(text string) {
	if !p.rich() {
		fmt.Fprint(p.w, text)
		return
	}
	for _, ln := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if ln == "" {
			continue
		}
		trimmed := strings.TrimLeft(ln, " \t")
		indent := ln[:len(ln)-len(trimmed)]
		if item, ok := strings.CutPrefix(trimmed, "- "); ok {
			fmt.Fprintf(p.w, "%s%s %s\n", indent, Styles.Muted.Render(string(IconBullet)), Styles.Node.Render(item))
			continue
		}
		fmt.Fprintln(p.w, Styles.Title.Render(trimmed))
	}
}

// Trail prints one route, start first.
func (p *Printer) Trail(nodes []string) {
	if !p.rich() {
		fmt.Fprintln(p.w, strings.Join(nodes, " -> "))
		return
	}
	styled := make([]string, len(nodes))
	for i, n := range nodes {
		styled[i] = Styles.Node.Render(n)
	}
	fmt.Fprintln(p.w, strings.Join(styled, " "+IconArrow.Render()+" "))
}

// Muted prints secondary text. Plain mode prints nothing.
func (p *Printer) Muted(text string) {
	if p.rich() {
		fmt.Fprintln(p.w, Styles.Muted.Render(text))
	}
}
