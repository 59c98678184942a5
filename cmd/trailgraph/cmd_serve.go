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
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/trailgraph/pkg/ux"
	"github.com/AleutianAI/trailgraph/services/trail"
	"github.com/AleutianAI/trailgraph/services/trail/rebuild"
	"github.com/AleutianAI/trailgraph/services/trail/telemetry"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph over HTTP",
	Long: `Builds the graph and serves it under /v1/trail. With --watch, manifest
changes trigger a rebuild that is swapped in atomically; requests in flight
keep the graph they started with.

When the prometheus metrics exporter is configured, /metrics is served too.

Examples:
  trailgraph serve -m vault/ --port 8090 --watch`,
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a manifest changes and print each summary",
	Args:  cobra.NoArgs,
	RunE:  withApp(runWatch),
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default: server.addr from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false,
		"Rebuild when manifests change")
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// startWatcher runs a watcher over the manifest paths that triggers live.
//
// The returned channel is closed when the watcher stops.
func startWatcher(ctx context.Context, a *app, live *rebuild.Live, onSwap func(*rebuild.Result)) (<-chan struct{}, error) {
	w, err := rebuild.NewWatcher(a.cfg.Sources.Manifests, func(ctx context.Context, changed []string) {
		a.logger.Info("sources changed", slog.Int("files", len(changed)))
		res, err := live.Trigger(ctx)
		switch {
		case errors.Is(err, rebuild.ErrSuperseded):
			return
		case err != nil:
			a.logger.Error("rebuild failed", slog.String("error", err.Error()))
			return
		}
		if onSwap != nil {
			onSwap(res)
		}
	}, rebuild.WatcherOptions{
		Debounce:          a.cfg.Sources.WatchDebounce,
		RebuildsPerMinute: a.cfg.Sources.MaxRebuildsPerMinute,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()
	return done, nil
}

func runServe(ctx context.Context, a *app, _ []string) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	live, err := a.live()
	if err != nil {
		return err
	}
	svc, err := trail.NewService(live,
		trail.WithDisplay(a.cfg.Display),
		trail.WithServiceLogger(a.logger),
	)
	if err != nil {
		return err
	}
	if _, err := live.Current(ctx); err != nil {
		a.logger.Warn("initial build failed; serving until a rebuild succeeds", slog.String("error", err.Error()))
	}

	var watchDone <-chan struct{}
	if serveWatch {
		if watchDone, err = startWatcher(ctx, a, live, nil); err != nil {
			return err
		}
	}

	addr := a.cfg.Server.Addr
	if servePort > 0 {
		addr = ":" + strconv.Itoa(servePort)
	}
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           trail.NewRouter(svc, a.cfg.Telemetry.ServiceName, telemetry.MetricsHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.logger.Info("server stopped")
	}
	if watchDone != nil {
		<-watchDone
	}
	return nil
}

func runWatch(ctx context.Context, a *app, _ []string) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	live, err := a.live()
	if err != nil {
		return err
	}
	report := func(res *rebuild.Result) {
		_ = emit(ctx, a, res.Stats, func(p *ux.Printer) {
			p.Success(fmt.Sprintf("%s  %d nodes  %d edges  %d errors",
				res.BuiltAt.Format(time.TimeOnly), res.Stats.NodeCount, res.Stats.EdgeCount, len(res.Errors)))
		})
	}

	res, err := live.Current(ctx)
	if err != nil {
		return err
	}
	report(res)

	done, err := startWatcher(ctx, a, live, report)
	if err != nil {
		return err
	}
	<-done
	return nil
}
