// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	store "github.com/AleutianAI/trailgraph/services/trail/storage/badger"
)

// journalPrefix precedes the document path in every journal key.
const journalPrefix = "batch/"

// ErrNilDB is returned when a Journal is created without a database.
var ErrNilDB = errors.New("journal database must not be nil")

// Journal caches batches in BadgerDB, one key per document.
//
// Description:
//
//	A Journal lets producers record what each document contributed and
//	replay it on the next start without re-parsing the collection. Values
//	are msgpack-encoded Batches under "batch/<path>". Writing a batch for a
//	path replaces the previous one. The journal is a cache of intake
//	requests, not a copy of the graph.
//
// Thread Safety: Safe for concurrent use.
type Journal struct {
	db *store.DB
}

// NewJournal creates a journal over db.
func NewJournal(db *store.DB) (*Journal, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &Journal{db: db}, nil
}

func journalKey(path string) []byte {
	return []byte(journalPrefix + path)
}

// Name implements Source.
func (j *Journal) Name() string {
	return "journal"
}

// Put stores b under its path, replacing any previous batch.
func (j *Journal) Put(ctx context.Context, b Batch) error {
	if b.Path == "" {
		return fmt.Errorf("journal put: batch has no path")
	}
	data, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", b.Path, err)
	}
	return j.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(journalKey(b.Path), data)
	})
}

// PutAll stores many batches through a write batch.
//
// Batches sharing a path collapse to the last one. Batches without a path
// are skipped.
func (j *Journal) PutAll(ctx context.Context, batches []Batch) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	merged := make(map[string]Batch, len(batches))
	order := make([]string, 0, len(batches))
	for _, b := range batches {
		if b.Path == "" {
			continue
		}
		if prev, ok := merged[b.Path]; ok {
			merged[b.Path] = mergeBatches(prev, b)
			continue
		}
		merged[b.Path] = b
		order = append(order, b.Path)
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()

	for _, path := range order {
		data, err := msgpack.Marshal(merged[path])
		if err != nil {
			return 0, fmt.Errorf("encode batch %s: %w", path, err)
		}
		if err := wb.Set(journalKey(path), data); err != nil {
			return 0, fmt.Errorf("journal write %s: %w", path, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("journal flush: %w", err)
	}
	return len(order), nil
}

// mergeBatches concatenates two batches for the same path. A manifest may
// contribute several notes that map onto one document key.
func mergeBatches(a, b Batch) Batch {
	return Batch{
		Path:   a.Path,
		Nodes:  append(append([]NodeRequest(nil), a.Nodes...), b.Nodes...),
		Edges:  append(append([]EdgeRequest(nil), a.Edges...), b.Edges...),
		Errors: append(append([]BuildError(nil), a.Errors...), b.Errors...),
	}
}

// Get returns the batch stored for path.
func (j *Journal) Get(ctx context.Context, path string) (Batch, bool, error) {
	var (
		b     Batch
		found bool
	)
	err := j.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(journalKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &b)
		})
	})
	if err != nil {
		return Batch{}, false, fmt.Errorf("journal get %s: %w", path, err)
	}
	return b, found, nil
}

// Delete removes the batch for path. Deleting a missing path is not an error.
func (j *Journal) Delete(ctx context.Context, path string) error {
	return j.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(journalKey(path))
	})
}

// Collect implements Source. Batches come back in key order.
//
// A value that does not decode becomes a parse_failed record for its path
// rather than failing the whole collection.
func (j *Journal) Collect(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := j.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(journalPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(journalPrefix):])

			var b Batch
			err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &b)
			})
			if err != nil {
				out = append(out, Batch{
					Path:   path,
					Errors: []BuildError{{Path: path, Code: CodeParseFailed, Message: err.Error()}},
				})
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal collect: %w", err)
	}
	return out, nil
}

// Len returns the number of stored batches.
func (j *Journal) Len(ctx context.Context) (int, error) {
	n := 0
	err := j.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(journalPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
