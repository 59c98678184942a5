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
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrSuperseded is returned by Trigger when a newer trigger started
	// before this rebuild finished. The result was discarded.
	ErrSuperseded = errors.New("rebuild superseded by a newer trigger")

	// ErrNoBuilder is returned when a Live has no build function.
	ErrNoBuilder = errors.New("live graph has no build function")
)

// BuildFunc produces a rebuild result. Usually a closure over Rebuild.
type BuildFunc func(ctx context.Context) (*Result, error)

// Live holds the current rebuild result.
//
// Description:
//
//	Readers call Load and keep using the *Result they got for as long as
//	they need it; a swap never mutates a published result. Trigger numbers
//	each rebuild with a generation. When it finishes, it is swapped in only
//	if no newer trigger has started since, so results are published in
//	trigger order and an overtaken rebuild is dropped. A failed rebuild
//	leaves the previous result live.
//
// Thread Safety: Safe for concurrent use.
type Live struct {
	build  BuildFunc
	logger *slog.Logger

	current    atomic.Pointer[Result]
	generation atomic.Uint64

	// swapMu makes the generation check and the swap one step.
	swapMu sync.Mutex
	flight singleflight.Group
}

// LiveOption configures a Live.
type LiveOption func(*Live)

// WithLiveLogger sets the logger.
func WithLiveLogger(l *slog.Logger) LiveOption {
	return func(lv *Live) {
		if l != nil {
			lv.logger = l
		}
	}
}

// NewLive creates a Live with nothing published yet.
func NewLive(build BuildFunc, opts ...LiveOption) *Live {
	l := &Live{build: build, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the current result, or nil before the first swap.
func (l *Live) Load() *Result {
	return l.current.Load()
}

// Swap publishes r unconditionally and returns the previous result.
func (l *Live) Swap(r *Result) *Result {
	l.swapMu.Lock()
	defer l.swapMu.Unlock()
	return l.current.Swap(r)
}

// Generation returns the number of triggers started so far.
func (l *Live) Generation() uint64 {
	return l.generation.Load()
}

// Trigger runs a rebuild and publishes it unless a newer trigger started
// meanwhile.
//
// Outputs:
//
//	*Result - The published result.
//	error - The build error (previous result stays live), ErrSuperseded,
//	        or ErrNoBuilder.
func (l *Live) Trigger(ctx context.Context) (*Result, error) {
	if l.build == nil {
		return nil, ErrNoBuilder
	}
	gen := l.generation.Add(1)

	res, err := l.build(ctx)
	if err != nil {
		l.logger.Warn("rebuild failed, keeping previous graph",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	l.swapMu.Lock()
	if l.generation.Load() != gen {
		l.swapMu.Unlock()
		recordSwap(ctx, outcomeSuperseded)
		l.logger.Info("discarding superseded rebuild",
			slog.Uint64("generation", gen),
			slog.String("build_id", res.BuildID),
		)
		return nil, ErrSuperseded
	}
	l.current.Store(res)
	l.swapMu.Unlock()

	recordSwap(ctx, outcomeOK)
	l.logger.Debug("graph swapped",
		slog.Uint64("generation", gen),
		slog.String("build_id", res.BuildID),
	)
	return res, nil
}

// Current returns the published result, building it on first use.
//
// Concurrent first callers share one build. If that build is overtaken by
// another trigger, the winner's result is returned.
func (l *Live) Current(ctx context.Context) (*Result, error) {
	if r := l.Load(); r != nil {
		return r, nil
	}

	v, err, _ := l.flight.Do("current", func() (interface{}, error) {
		if r := l.Load(); r != nil {
			return r, nil
		}
		return l.Trigger(ctx)
	})
	if errors.Is(err, ErrSuperseded) {
		if r := l.Load(); r != nil {
			return r, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}
