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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	manifests  []string
	journalDir string
	logLevel   string
	logDir     string
	jsonOutput bool
	jqFilter   string

	rootCmd = &cobra.Command{
		Use:   "trailgraph",
		Short: "Build and query a typed relationship graph of notes",
		Long: `trailgraph reads explicit note relationships from YAML manifests and an
optional journal, derives the implied ones (parents, siblings, cousins)
and answers neighbour, trail and index queries over the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to trailgraph.yaml (default: built-in configuration)")
	rootCmd.PersistentFlags().StringArrayVarP(&manifests, "manifest", "m", nil,
		"Manifest file or directory; repeatable, added to sources.manifests")
	rootCmd.PersistentFlags().StringVar(&journalDir, "journal", "",
		"Badger journal directory; overrides sources.journal.dir")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Also write JSON logs into this directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.PersistentFlags().StringVar(&jqFilter, "jq", "",
		"Filter JSON output through a jq expression (implies --json)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(neighboursCmd)
	rootCmd.AddCommand(trailCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(traverseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(writebackCmd)
	rootCmd.AddCommand(journalCmd)
}
