// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badger wraps a BadgerDB instance behind a small transactional
// API. The DB is a service-global singleton opened in main; stores built
// on top of it do not own its lifecycle.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// DB wraps a BadgerDB handle.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// Open opens (or creates) a BadgerDB at path. An empty path opens an
// in-memory instance, used by tests and dev mode.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := dgbadger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Badger's own chatter goes through slog at debug level.
	opts = opts.WithLogger(&slogAdapter{logger: logger})

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", path, err)
	}
	return &DB{db: db, logger: logger}, nil
}

// WithReadTxn runs fn inside a read-only transaction. The context is
// checked before the transaction starts; Badger itself does not observe
// cancellation mid-transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// WithTxn runs fn inside a read-write transaction.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// RunGC triggers one value-log garbage collection pass. Callers schedule
// this periodically; ErrNoRewrite from Badger means there was nothing to
// collect and is swallowed.
func (d *DB) RunGC() error {
	err := d.db.RunValueLogGC(0.5)
	if err == dgbadger.ErrNoRewrite {
		return nil
	}
	return err
}

// Close flushes and closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// slogAdapter satisfies badger.Logger over slog. Badger logs internal
// compaction noise; all of it maps to debug except errors.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf("badger: "+format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf("badger: "+format, args...))
}
