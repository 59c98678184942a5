// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package writeback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SidecarSuffix is appended to the note ID to name its sidecar file.
const SidecarSuffix = ".implied.yaml"

// ErrOutsideDir is returned for a note ID that would escape the sink
// directory.
var ErrOutsideDir = errors.New("note path escapes output directory")

// DirSink writes each note to <Dir>/<id>.implied.yaml.
type DirSink struct {
	Dir string
}

// Path returns the sidecar path for id.
func (s DirSink) Path(id string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, id)
	}
	return filepath.Join(s.Dir, rel+SidecarSuffix), nil
}

// Write implements Sink. The file is written to a temporary name and
// renamed so readers never see half a sidecar.
func (s DirSink) Write(ctx context.Context, note Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(note.ID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadSidecar decodes a sidecar written by DirSink.
func ReadSidecar(path string) (Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Note{}, err
	}
	var note Note
	if err := yaml.Unmarshal(data, &note); err != nil {
		return Note{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return note, nil
}
