// Package engine implements the top-level Database: the table registry,
// the shared bufferpool and lock manager, and metadata persistence, per
// spec §4.8. Grounded on teacher's pkg/database/database.go for the
// Open/Close/registry shape and original_source/lstore/db.py for the
// metadata.json / <table>_metadata.json round trip.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	atomicfile "github.com/natefinch/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lstorecore/lstore/internal/config"
	"github.com/lstorecore/lstore/internal/obs"
	"github.com/lstorecore/lstore/pkg/bufferpool"
	"github.com/lstorecore/lstore/pkg/lockmgr"
	"github.com/lstorecore/lstore/pkg/lserr"
	"github.com/lstorecore/lstore/pkg/pager"
	"github.com/lstorecore/lstore/pkg/table"
	"github.com/lstorecore/lstore/pkg/txn"
)

const rootMetaFile = "metadata.json"

// tableInfo is one entry of root metadata.json: table-name -> shape.
type tableInfo struct {
	NumColumns int `json:"num_columns"`
	Key        int `json:"key"`
}

// Database is the engine's top-level registry.
type Database struct {
	root string
	cfg  config.Engine
	bp   *bufferpool.Bufferpool
	lm   *lockmgr.LockManager
	log  *obs.Logger

	mu       sync.RWMutex
	tables   map[string]*table.Table
	coarseMu sync.Mutex // shared across every txn.Worker from NewWorker

	nextTxnID int64
	activeMu  sync.Mutex
	active    map[int64]struct{}
}

// Open creates path if absent, otherwise loads every table described by
// its root and per-table metadata files. A failure reconstructing any one
// table degrades to that table being absent, per spec §4.8's "failures
// yield an empty database" — callers see a smaller, usable registry
// rather than a hard error.
func Open(path string, cfg config.Engine, logger *obs.Logger) (*Database, error) {
	if logger == nil {
		logger = obs.Nop()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create root %q: %w", path, err)
	}

	fp, err := pager.NewFilePager(filepath.Join(path, "data"))
	if err != nil {
		return nil, err
	}
	bp := bufferpool.New(fp, cfg.BufferpoolCapacity, logger)

	db := &Database{
		root:   path,
		cfg:    cfg,
		bp:     bp,
		lm:     lockmgr.New(),
		log:    logger,
		tables: make(map[string]*table.Table),
		active: make(map[int64]struct{}),
	}

	rootPath := filepath.Join(path, rootMetaFile)
	data, err := os.ReadFile(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		logger.Warn("engine: failed to read root metadata, starting empty", "err", err)
		return db, nil
	}

	var infos map[string]tableInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		logger.Warn("engine: corrupt root metadata, starting empty", "err", err)
		return db, nil
	}

	for name, info := range infos {
		meta, err := loadTableMeta(path, name)
		if err != nil {
			logger.Warn("engine: failed to load table metadata, skipping", "table", name, "err", err)
			continue
		}
		meta.NumColumns = info.NumColumns
		meta.Key = info.Key
		db.tables[name] = table.Restore(name, bp, meta)
	}
	return db, nil
}

func tableMetaPath(root, name string) string {
	return filepath.Join(root, name+"_metadata.json")
}

func loadTableMeta(root, name string) (table.Meta, error) {
	data, err := os.ReadFile(tableMetaPath(root, name))
	if err != nil {
		return table.Meta{}, err
	}
	var meta table.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return table.Meta{}, err
	}
	return meta, nil
}

// CreateTable returns the existing table named name if present, else
// constructs, registers, and returns a new one.
func (db *Database) CreateTable(name string, numColumns, key int) *table.Table {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.tables[name]; ok {
		return t
	}
	t := table.New(name, numColumns, key, db.bp)
	t.MergeThreshold = db.cfg.MergeThreshold
	t.MergeInterval = db.cfg.MergeInterval
	db.tables[name] = t
	return t
}

// DropTable deletes name's metadata file and removes it from the
// registry.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tables[name]; !ok {
		return lserr.Wrap(lserr.ErrNotFound, "no such table")
	}
	delete(db.tables, name)
	if err := os.Remove(tableMetaPath(db.root, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("engine: drop table %q: %w", name, err)
	}
	return nil
}

// Table returns the registered table named name, or ErrNotFound.
func (db *Database) Table(name string) (*table.Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	if !ok {
		return nil, lserr.Wrap(lserr.ErrNotFound, "no such table")
	}
	return t, nil
}

// BeginTransaction allocates a monotonic transaction id, registers it as
// active, and returns a new Transaction sharing the database's lock
// manager.
func (db *Database) BeginTransaction() *txn.Transaction {
	id := atomic.AddInt64(&db.nextTxnID, 1)
	db.activeMu.Lock()
	db.active[id] = struct{}{}
	db.activeMu.Unlock()
	return txn.New(id, db.lm)
}

// CommitTransaction executes t and retires it from the active set
// regardless of outcome.
func (db *Database) CommitTransaction(t *txn.Transaction) error {
	defer db.retire(t.ID)
	return t.Execute()
}

// AbortTransaction retires t from the active set, releasing any locks it
// still holds. Callers that never called Execute can use this to discard
// a transaction outright.
func (db *Database) AbortTransaction(t *txn.Transaction) {
	db.lm.ReleaseAll(lockmgr.TxnID(strconv.FormatInt(t.ID, 10)))
	db.retire(t.ID)
}

func (db *Database) retire(id int64) {
	db.activeMu.Lock()
	delete(db.active, id)
	db.activeMu.Unlock()
}

// NewWorker returns a txn.Worker sharing this database's lock manager and
// coarse execution mutex, configured with this database's retry policy.
func (db *Database) NewWorker() *txn.Worker {
	return txn.NewWorker(db.lm, &db.coarseMu, db.cfg.WorkerMaxRetries, db.cfg.WorkerBackoffBase)
}

// RunWorkers runs every worker concurrently to completion, fanning out
// with an errgroup the way the pack's other concurrent-worker code does,
// and returns the first worker error (none of txn.Worker's methods
// currently return one, but RunWorkers keeps the door open for a future
// worker that does).
func (db *Database) RunWorkers(ctx context.Context, workers []*txn.Worker) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Close clears all locks, serializes root and per-table metadata, and
// flushes the bufferpool. It does not wait for active transactions: if
// any are still tracked it logs a warning with their count and proceeds.
func (db *Database) Close() error {
	db.activeMu.Lock()
	remaining := len(db.active)
	db.activeMu.Unlock()
	if remaining > 0 {
		db.log.Warn("engine: closing with active transactions still tracked", "count", remaining)
	}
	db.lm.ClearAll()

	db.mu.RLock()
	defer db.mu.RUnlock()

	infos := make(map[string]tableInfo, len(db.tables))
	var errs error
	for name, t := range db.tables {
		infos[name] = tableInfo{NumColumns: t.NumColumns, Key: t.Key}
		meta, err := json.Marshal(t.Export())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("engine: marshal metadata for %q: %w", name, err))
			continue
		}
		if err := atomicfile.WriteFile(tableMetaPath(db.root, name), bytes.NewReader(meta)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("engine: write metadata for %q: %w", name, err))
		}
	}

	root, err := json.Marshal(infos)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if err := atomicfile.WriteFile(filepath.Join(db.root, rootMetaFile), bytes.NewReader(root)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engine: write root metadata: %w", err))
	}

	if err := db.bp.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
