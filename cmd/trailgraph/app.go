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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/trailgraph/pkg/logging"
	"github.com/AleutianAI/trailgraph/pkg/ux"
	"github.com/AleutianAI/trailgraph/services/trail/config"
	"github.com/AleutianAI/trailgraph/services/trail/intake"
	"github.com/AleutianAI/trailgraph/services/trail/rebuild"
	store "github.com/AleutianAI/trailgraph/services/trail/storage/badger"
	"github.com/AleutianAI/trailgraph/services/trail/telemetry"
)

// errNoSources is returned when neither manifests nor a journal are set.
var errNoSources = errors.New("no sources: pass --manifest, --journal or set sources in the config")

// errNoJournal is returned by journal commands without a journal.
var errNoJournal = errors.New("no journal: pass --journal or set sources.journal in the config")

// app is the per-invocation state every command shares.
type app struct {
	cfg      config.Config
	compiled config.Compiled
	log      *logging.Logger
	logger   *slog.Logger
	out      *ux.Printer
	errOut   *ux.Printer

	db      *store.DB
	journal *intake.Journal

	shutdownTelemetry func(context.Context) error
}

// newApp loads configuration, applies flag overrides and sets up logging
// and telemetry.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cfg.Sources.Manifests = append(cfg.Sources.Manifests, manifests...)
	if journalDir != "" {
		jc := store.DefaultConfig(journalDir)
		cfg.Sources.Journal = &jc
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logDir != "" {
		cfg.Log.Dir = logDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	lg := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Log.JSON || !ux.IsTerminal(os.Stderr),
	})
	slog.SetDefault(lg.Slog())

	a := &app{
		cfg:    cfg,
		log:    lg,
		logger: lg.Slog(),
		out:    ux.NewPrinter(os.Stdout, ux.DetectMode(os.Stdout)),
		errOut: ux.NewPrinter(os.Stderr, ux.DetectMode(os.Stderr)),
	}

	a.shutdownTelemetry, err = telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		a.close()
		return nil, err
	}

	a.compiled, err = config.Compile(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	for _, be := range a.compiled.Errors {
		a.logger.Warn("config problem", slog.String("path", be.Path), slog.String("code", be.Code), slog.String("message", be.Message))
	}
	return a, nil
}

// openJournal opens the configured journal once.
func (a *app) openJournal() (*intake.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	jc := a.cfg.Sources.Journal
	if jc == nil {
		return nil, errNoJournal
	}
	c := *jc
	c.Logger = a.logger.With(slog.String("component", "badger"))
	db, err := store.Open(c)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j, err := intake.NewJournal(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db, a.journal = db, j
	return j, nil
}

// sources returns manifest and journal sources, in that order.
func (a *app) sources() ([]intake.Source, error) {
	var out []intake.Source
	if len(a.cfg.Sources.Manifests) > 0 {
		out = append(out, intake.NewManifestSource(a.cfg.Sources.Manifests...))
	}
	if a.cfg.Sources.Journal != nil {
		j, err := a.openJournal()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if len(out) == 0 {
		return nil, errNoSources
	}
	return out, nil
}

// input assembles the rebuild input from the compiled configuration.
func (a *app) input() (rebuild.Input, error) {
	sources, err := a.sources()
	if err != nil {
		return rebuild.Input{}, err
	}
	return rebuild.Input{
		Registry:    a.compiled.Registry,
		Rules:       a.compiled.Rules,
		Sources:     sources,
		Walk:        a.compiled.Walk,
		Sort:        a.compiled.Sort,
		BuildErrors: a.compiled.Errors,
		Logger:      a.logger,
	}, nil
}

// live returns a holder that rebuilds from the configured sources.
func (a *app) live() (*rebuild.Live, error) {
	in, err := a.input()
	if err != nil {
		return nil, err
	}
	return rebuild.NewLive(func(ctx context.Context) (*rebuild.Result, error) {
		return rebuild.Rebuild(ctx, in)
	}, rebuild.WithLiveLogger(a.logger)), nil
}

// build runs one rebuild.
func (a *app) build(ctx context.Context) (*rebuild.Result, error) {
	in, err := a.input()
	if err != nil {
		return nil, err
	}
	return rebuild.Rebuild(ctx, in)
}

// close releases the journal, flushes telemetry and closes the log file.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close journal", slog.String("error", err.Error()))
		}
		a.db, a.journal = nil, nil
	}
	if a.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTelemetry(ctx); err != nil {
			a.logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
		cancel()
	}
	_ = a.log.Close()
}

// withApp wraps a command body with app setup and teardown.
func withApp(run func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return run(ctx, a, args)
	}
}
