// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/trailgraph/services/trail/intake"
)

// Watcher defaults.
const (
	DefaultDebounce          = 250 * time.Millisecond
	DefaultRebuildsPerMinute = 30
)

// ErrNoWatchPaths is returned when a Watcher is created without paths.
var ErrNoWatchPaths = errors.New("no paths to watch")

// ChangeHandler receives the deduplicated, sorted manifest paths that
// changed during one debounce window.
type ChangeHandler func(ctx context.Context, changed []string)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is the quiet period after the last change before the
	// handler runs. Default: 250ms
	Debounce time.Duration

	// RebuildsPerMinute caps how often the handler runs. Default: 30
	RebuildsPerMinute int

	// Logger. Default: slog.Default()
	Logger *slog.Logger
}

// Watcher watches manifest files and directories.
//
// Description:
//
//	Directories are watched recursively, and directories created later are
//	added as they appear. A file path is watched through its parent
//	directory and only events for that file count. Only manifest files
//	(.yaml, .yml) trigger the handler. Changes are batched until Debounce
//	passes without another event, then the handler runs, no more often
//	than RebuildsPerMinute allows.
//
// Thread Safety: Run must be called once. Close may be called from any
// goroutine.
type Watcher struct {
	fsw      *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger

	// files are explicitly watched files; events for siblings are ignored.
	files map[string]bool
	// dirs are directories watched recursively.
	dirs []string

	closeOnce sync.Once
}

// NewWatcher creates a watcher over paths. Nothing is watched until Run.
func NewWatcher(paths []string, handler ChangeHandler, opts WatcherOptions) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoWatchPaths
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RebuildsPerMinute <= 0 {
		opts.RebuildsPerMinute = DefaultRebuildsPerMinute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w := &Watcher{
		handler:  handler,
		debounce: opts.Debounce,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RebuildsPerMinute)), 1),
		logger:   opts.Logger,
		files:    make(map[string]bool),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve watch path %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat watch path: %w", err)
		}
		if info.IsDir() {
			w.dirs = append(w.dirs, abs)
		} else {
			w.files[abs] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	return w, nil
}

// Close stops the underlying watcher. Run returns soon after.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

// Run watches until ctx is done or the watcher is closed.
//
// A pending batch is dropped on shutdown: the process is going away and a
// rebuild would be discarded anyway.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	for _, dir := range w.dirs {
		if err := w.addRecursive(dir); err != nil {
			return err
		}
	}
	for file := range w.files {
		if err := w.fsw.Add(filepath.Dir(file)); err != nil {
			return fmt.Errorf("watch %s: %w", file, err)
		}
	}

	pending := make(map[string]bool)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.underDir(event.Name) {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
					}
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timerC:
			timer, timerC = nil, nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.logger.Debug("manifest change", slog.Int("files", len(changed)))
			if w.handler != nil {
				w.handler(ctx, changed)
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) underDir(path string) bool {
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// relevant reports whether an event for path should trigger a rebuild.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	return intake.IsManifestFile(path) && w.underDir(path)
}
