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
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"

	"github.com/AleutianAI/trailgraph/pkg/ux"
)

// emit writes v as JSON when --json or --jq is set, otherwise calls text.
func emit(ctx context.Context, a *app, v any, text func(p *ux.Printer)) error {
	if jqFilter != "" {
		return writeJQ(ctx, a.out.Writer(), jqFilter, v)
	}
	if jsonOutput {
		return writeJSON(a.out.Writer(), v)
	}
	text(a.out)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJQ runs expr over v and writes every result on its own line.
// String results are written raw, like jq -r.
//
// v is round-tripped through JSON first: gojq only understands the
// generic map/slice/float64 shapes encoding/json produces.
func writeJQ(ctx context.Context, w io.Writer, expr string, v any) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("unmarshal output: %w", err)
	}

	iter := query.RunWithContext(ctx, input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			if haltErr, ok := err.(*gojq.HaltError); ok && haltErr.Value() == nil {
				return nil
			}
			return fmt.Errorf("jq error: %w", err)
		}
		if s, ok := out.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		line, err := gojq.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(line))
	}
}
