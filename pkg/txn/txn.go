// Package txn implements ordered multi-query transactions and a worker
// pool that executes them with bounded retry, per spec §4.6/§4.7.
// Grounded on original_source/lstore/transaction.py and
// transaction_worker.py, with Python's exception-based abort path
// translated into explicit error returns and the bare-Thread worker
// translated into a function any goroutine can run.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/lstorecore/lstore/pkg/lockmgr"
	"github.com/lstorecore/lstore/pkg/lserr"
)

// State is a transaction's lifecycle stage. Transitions are monotonic:
// StateNew -> StateActive -> {StateCommitted, StateAborted}.
type State int

const (
	StateNew State = iota
	StateActive
	StateCommitted
	StateAborted
)

// Query is one queued operation: a lock key for the record it touches, the
// lock mode that operation requires, and the closure that performs it
// against whatever table/arguments it closed over. Run's bool return is
// the operation's success flag (spec §7: operations return falsy on
// failure rather than panicking).
type Query struct {
	Key  int64
	Mode lockmgr.Mode
	Run  func() (any, bool)
}

// Select builds a read query (shared lock).
func Select(key int64, run func() (any, bool)) Query {
	return Query{Key: key, Mode: lockmgr.Shared, Run: run}
}

// Write builds a write query (exclusive lock): insert, update, delete,
// increment.
func Write(key int64, run func() (any, bool)) Query {
	return Query{Key: key, Mode: lockmgr.Exclusive, Run: run}
}

// Transaction is a finite, ordered sequence of queries executed under
// strict per-operation locking with early release.
type Transaction struct {
	ID      int64
	TraceID uuid.UUID

	lm      *lockmgr.LockManager
	queries []Query

	mu      sync.Mutex
	state   State
	Results []any
}

// New returns a transaction with the given id, backed by lm for locking.
func New(id int64, lm *lockmgr.LockManager) *Transaction {
	return &Transaction{ID: id, TraceID: uuid.New(), lm: lm, state: StateNew}
}

// AddQuery enqueues q. Must be called before Execute.
func (t *Transaction) AddQuery(q Query) {
	t.queries = append(t.queries, q)
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset returns the transaction to StateNew so a worker can retry it,
// discarding any partial results from a failed attempt.
func (t *Transaction) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateNew
	t.Results = nil
}

// begin transitions New -> Active. Fails if already started.
func (t *Transaction) begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateNew {
		return lserr.Wrap(lserr.ErrInvalidArgument, "transaction already started")
	}
	t.state = StateActive
	return nil
}

// Execute runs every queued query in order under strict per-operation
// locking: each query's lock is acquired before it runs and released as
// soon as no later query in the same transaction touches the same key
// (spec §4.6's operation-scoped early release). Any lock conflict or
// falsy query result aborts the transaction and releases every lock it
// still holds.
func (t *Transaction) Execute() error {
	if err := t.begin(); err != nil {
		return err
	}

	for i, q := range t.queries {
		if err := t.lm.Acquire(t.traceKey(), q.Key, q.Mode); err != nil {
			t.abort()
			return fmt.Errorf("%w: %w", lserr.ErrTxnAborted, err)
		}

		result, ok := q.Run()
		if !ok {
			t.lm.Release(t.traceKey(), q.Key)
			t.abort()
			return lserr.Wrap(lserr.ErrTxnAborted, "query reported failure")
		}
		t.mu.Lock()
		t.Results = append(t.Results, result)
		t.mu.Unlock()

		if !keyReferencedLater(t.queries[i+1:], q.Key) {
			t.lm.Release(t.traceKey(), q.Key)
		}
	}

	return t.commit()
}

func keyReferencedLater(rest []Query, key int64) bool {
	for _, q := range rest {
		if q.Key == key {
			return true
		}
	}
	return false
}

// traceKey is the lock-manager's transaction identity: the numeric id is
// enough to distinguish transactions within one process, rendered as a
// string since lockmgr.TxnID is string-keyed.
func (t *Transaction) traceKey() lockmgr.TxnID {
	return idKey(t.ID)
}

func (t *Transaction) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return lserr.Wrap(lserr.ErrInvalidArgument, "cannot commit from this state")
	}
	t.lm.ReleaseAll(idKey(t.ID))
	t.state = StateCommitted
	return nil
}

func (t *Transaction) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCommitted {
		return
	}
	t.lm.ReleaseAll(idKey(t.ID))
	t.state = StateAborted
}

func idKey(id int64) lockmgr.TxnID {
	return lockmgr.TxnID(strconv.FormatInt(id, 10))
}

// Worker executes a queue of transactions with bounded retry, serialized
// against every other Worker sharing the same coarse mutex (spec §4.7,
// §5's "process-wide coarse mutex").
type Worker struct {
	ID    string
	lm    *lockmgr.LockManager
	mu    *sync.Mutex // shared coarse mutex across all workers
	queue []*Transaction

	maxRetries  int
	backoffBase time.Duration

	statsMu                 sync.Mutex
	SuccessCount, FailCount int
}

// DefaultMaxRetries and DefaultBackoffBase are NewWorker's fallbacks for a
// non-positive maxRetries or backoffBase respectively, matching
// config.Default().
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 100 * time.Millisecond
)

// NewWorker returns a Worker sharing lm and the coarse mutex coarse with
// every other worker in the pool, retrying a transaction up to maxRetries
// times with exponential backoff based at backoffBase (spec §4.7; callers
// typically pass config.Engine.WorkerMaxRetries/WorkerBackoffBase). A
// non-positive maxRetries or backoffBase falls back to its Default.
func NewWorker(lm *lockmgr.LockManager, coarse *sync.Mutex, maxRetries int, backoffBase time.Duration) *Worker {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	return &Worker{ID: uuid.NewString()[:8], lm: lm, mu: coarse, maxRetries: maxRetries, backoffBase: backoffBase}
}

// Add enqueues txn for this worker.
func (w *Worker) Add(txn *Transaction) {
	w.queue = append(w.queue, txn)
}

// Run executes every queued transaction to completion, retrying a failed
// attempt up to w.maxRetries times with exponential backoff based at
// w.backoffBase, per spec §4.7. Only a failure whose kind is
// lserr.ErrLockConflict is retried; a transaction aborted for any other
// reason (a query reporting failure) fails outright.
func (w *Worker) Run(ctx context.Context) {
	for _, t := range w.queue {
		w.runOne(ctx, t)
	}
}

func (w *Worker) runOne(ctx context.Context, t *Transaction) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.backoffBase
	b.Multiplier = 2
	b.MaxElapsedTime = 0

retryLoop:
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		t.Reset()

		w.mu.Lock()
		err := t.Execute()
		w.mu.Unlock()

		if err == nil {
			w.statsMu.Lock()
			w.SuccessCount++
			w.statsMu.Unlock()
			return
		}
		if !errors.Is(err, lserr.ErrLockConflict) || attempt == w.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			break retryLoop
		case <-time.After(b.NextBackOff()):
		}
	}
	w.statsMu.Lock()
	w.FailCount++
	w.statsMu.Unlock()
}
