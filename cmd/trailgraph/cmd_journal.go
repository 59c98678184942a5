// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/trailgraph/pkg/ux"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage the badger intake journal",
	Long: `The journal caches what each document contributed so a rebuild can
replay it without re-reading the collection. Entries are keyed by document
path; importing a path again replaces its entry.

Subcommands:
  import  - Parse manifests and store their batches
  list    - List journal entries
  rm      - Remove entries by path`,
}

var journalImportCmd = &cobra.Command{
	Use:   "import MANIFEST...",
	Short: "Parse manifests and store their batches in the journal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runJournalImport),
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	Args:  cobra.NoArgs,
	RunE:  withApp(runJournalList),
}

var journalRmCmd = &cobra.Command{
	Use:   "rm PATH...",
	Short: "Remove journal entries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runJournalRm),
}

func init() {
	journalCmd.AddCommand(journalImportCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalRmCmd)
}

// journalEntry summarises one stored batch.
type journalEntry struct {
	Path   string `json:"path"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
	Errors int    `json:"errors"`
}

func runJournalImport(ctx context.Context, a *app, args []string) error {
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	batches, err := intake.NewManifestSource(args...).Collect(ctx)
	if err != nil {
		return err
	}
	n, err := j.PutAll(ctx, batches)
	if err != nil {
		return err
	}
	a.logger.Info("journal import complete", "batches", len(batches), "entries", n)
	return emit(ctx, a, map[string]int{"batches": len(batches), "entries": n}, func(p *ux.Printer) {
		p.Success(fmt.Sprintf("stored %d entries from %d batches", n, len(batches)))
	})
}

func runJournalList(ctx context.Context, a *app, _ []string) error {
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	batches, err := j.Collect(ctx)
	if err != nil {
		return err
	}
	entries := make([]journalEntry, len(batches))
	for i, b := range batches {
		entries[i] = journalEntry{Path: b.Path, Nodes: len(b.Nodes), Edges: len(b.Edges), Errors: len(b.Errors)}
	}
	return emit(ctx, a, entries, func(p *ux.Printer) {
		rows := make([][]string, len(entries))
		for i, e := range entries {
			rows[i] = []string{e.Path, strconv.Itoa(e.Nodes), strconv.Itoa(e.Edges), strconv.Itoa(e.Errors)}
		}
		p.Table([]string{"path", "nodes", "edges", "errors"}, rows)
	})
}

func runJournalRm(ctx context.Context, a *app, args []string) error {
	j, err := a.openJournal()
	if err != nil {
		return err
	}
	for _, path := range args {
		if err := j.Delete(ctx, path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	a.out.Success(fmt.Sprintf("removed %d entries", len(args)))
	return nil
}
