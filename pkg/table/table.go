// Package table implements record lifecycle, base/tail versioning, and
// merge/rollback over a bufferpool, per spec §4.4. Grounded almost
// line-for-line on original_source/lstore/table.py's create_record,
// update_record (_write_tail_record/_update_base_record), __merge,
// rollback_record, and get_record_version, translated from Python's
// exception-based control flow into explicit error returns.
package table

import (
	"sync"
	"time"

	"github.com/lstorecore/lstore/pkg/bufferpool"
	"github.com/lstorecore/lstore/pkg/index"
	"github.com/lstorecore/lstore/pkg/lserr"
	"github.com/lstorecore/lstore/pkg/pager"
)

// Metadata column layout, fixed across every table.
const (
	ColIndirection = 0
	ColRID         = 1
	ColTimestamp   = 2
	ColSchema      = 3
	numMetaColumns = 4
)

// Kind classifies a page-directory entry.
type Kind int

const (
	KindBase Kind = iota
	KindTail
	KindDeleted
	KindMerged
)

// location is one page-directory entry: which chain, which page within the
// chain, and which slot.
type location struct {
	kind  Kind
	chain int
	slot  int
}

// Record is a materialized logical row.
type Record struct {
	RID            int64
	Key            int64
	Columns        []int64 // length N, absent positions carry 0 when Present[i] is false
	Present        []bool
	Indirection    int64
	Timestamp      int64
	SchemaEncoding uint64
}

// Table owns one logical table's column chains, page directory, and index.
type Table struct {
	Name        string
	Key         int
	NumColumns  int
	TotalColumns int

	bp  *bufferpool.Bufferpool
	idx *index.Index

	mu            sync.RWMutex
	pageDirectory map[int64]location
	basePages     [][]pager.ID // per column, ordered chain
	tailPages     [][]pager.ID

	nextRIDMu sync.Mutex
	nextRID   int64

	numRecords uint64
	numUpdates uint64

	// MergeThreshold is the update-count modulus that triggers a merge
	// attempt (spec §4.4 step 8). MergeInterval is the minimum wall-clock
	// gap between merges.
	MergeThreshold uint64
	MergeInterval  time.Duration
	lastMerge      time.Time
}

// New returns an empty table with numColumns user columns and key as the
// primary key column index, backed by bp.
func New(name string, numColumns, key int, bp *bufferpool.Bufferpool) *Table {
	total := numColumns + numMetaColumns
	t := &Table{
		Name:           name,
		Key:            key,
		NumColumns:     numColumns,
		TotalColumns:   total,
		bp:             bp,
		pageDirectory:  make(map[int64]location),
		basePages:      make([][]pager.ID, total),
		tailPages:      make([][]pager.ID, total),
		MergeThreshold: 10,
		MergeInterval:  60 * time.Second,
		lastMerge:      time.Unix(0, 0),
	}
	for c := 0; c < total; c++ {
		t.basePages[c] = []pager.ID{{Kind: pager.Base, Column: c, Chain: 0}}
		t.tailPages[c] = []pager.ID{{Kind: pager.Tail, Column: c, Chain: 0}}
	}
	t.idx = index.New(numColumns, key, t)
	return t
}

// Index exposes the table's Index for callers needing create/drop/locate
// directly (e.g. the engine layer's administrative operations).
func (t *Table) Index() *index.Index { return t.idx }

func (t *Table) nowMicros() int64 { return time.Now().UnixMicro() }

func (t *Table) allocRID() int64 {
	t.nextRIDMu.Lock()
	defer t.nextRIDMu.Unlock()
	rid := t.nextRID
	t.nextRID++
	return rid
}

// ForEachRecord implements index.RecordSource by walking every live
// (base, not-deleted) page-directory entry.
func (t *Table) ForEachRecord(fn func(rid int64, columns []int64) bool) {
	t.mu.RLock()
	dirSnapshot := make(map[int64]location, len(t.pageDirectory))
	for rid, loc := range t.pageDirectory {
		dirSnapshot[rid] = loc
	}
	t.mu.RUnlock()

	for rid, loc := range dirSnapshot {
		if loc.kind != KindBase {
			continue
		}
		rec, err := t.readAt(loc, rid)
		if err != nil {
			continue
		}
		if !fn(rid, rec.Columns) {
			return
		}
	}
}

// Insert creates a new base record from columns (length must equal
// NumColumns) and returns it. Mirrors table.py's create_record.
func (t *Table) Insert(columns []int64) (*Record, error) {
	if len(columns) != t.NumColumns {
		return nil, lserr.Wrap(lserr.ErrInvalidArgument, "column count mismatch")
	}

	rid := t.allocRID()
	timestamp := t.nowMicros()

	t.mu.Lock()
	chain, err := t.ensureBaseCapacityLocked()
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	slot, err := t.bp.GetNumRecords(t.Name, t.basePages[ColIndirection][chain])
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	if err := t.appendMeta(t.basePages, chain, rid, rid, timestamp, 0); err != nil {
		return nil, err
	}
	for i, v := range columns {
		ok, err := t.bp.WriteToPage(t.Name, t.basePages[i+numMetaColumns][chain], v, -1)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lserr.Wrap(lserr.ErrIO, "failed to append column value")
		}
	}

	t.mu.Lock()
	t.pageDirectory[rid] = location{kind: KindBase, chain: chain, slot: slot}
	t.numRecords++
	t.mu.Unlock()

	_ = t.idx.UpdateIndex(rid, nil, columns)

	present := make([]bool, t.NumColumns)
	for i := range present {
		present[i] = true
	}
	return &Record{
		RID: rid, Key: columns[t.Key], Columns: columns, Present: present,
		Indirection: rid, Timestamp: timestamp, SchemaEncoding: 0,
	}, nil
}

// ensureBaseCapacityLocked returns the chain index of a base page with
// spare capacity, appending one to every column's chain if none exists.
// Callers must hold t.mu.
func (t *Table) ensureBaseCapacityLocked() (int, error) {
	return t.ensureCapacityLocked(t.basePages, pager.Base)
}

func (t *Table) ensureCapacityLocked(chains [][]pager.ID, kind pager.Kind) (int, error) {
	n := len(chains[0])
	for c := 0; c < n; c++ {
		full := false
		for col := 0; col < t.TotalColumns; col++ {
			cnt, err := t.bp.GetNumRecords(t.Name, chains[col][c])
			if err != nil {
				return 0, err
			}
			if cnt >= page512Limit {
				full = true
				break
			}
		}
		if !full {
			return c, nil
		}
	}
	for col := 0; col < t.TotalColumns; col++ {
		chains[col] = append(chains[col], pager.ID{Kind: kind, Column: col, Chain: len(chains[col])})
	}
	return n, nil
}

// page512Limit mirrors pkg/page.MaxSlots without importing pkg/page just
// for this constant (the bufferpool already owns that dependency).
const page512Limit = 512

func (t *Table) appendMeta(chains [][]pager.ID, chain int, indirection, rid, timestamp int64, schema uint64) error {
	writes := []struct {
		col int
		val int64
	}{
		{ColIndirection, indirection},
		{ColRID, rid},
		{ColTimestamp, timestamp},
		{ColSchema, int64(schema)},
	}
	for _, w := range writes {
		ok, err := t.bp.WriteToPage(t.Name, chains[w.col][chain], w.val, -1)
		if err != nil {
			return err
		}
		if !ok {
			return lserr.Wrap(lserr.ErrIO, "failed to append metadata slot")
		}
	}
	return nil
}

// Get returns the current record for rid. Deleted and merged rids are
// reported as lserr.ErrNotFound.
func (t *Table) Get(rid int64) (*Record, error) {
	t.mu.RLock()
	loc, ok := t.pageDirectory[rid]
	t.mu.RUnlock()
	if !ok {
		return nil, lserr.Wrap(lserr.ErrNotFound, "no such rid")
	}
	if loc.kind == KindDeleted || loc.kind == KindMerged {
		return nil, lserr.Wrap(lserr.ErrNotFound, "record is not live")
	}
	return t.readAt(loc, rid)
}

func (t *Table) readAt(loc location, rid int64) (*Record, error) {
	chains := t.basePages
	if loc.kind == KindTail {
		chains = t.tailPages
	}

	indirection, _, err := t.bp.ReadFromPage(t.Name, chains[ColIndirection][loc.chain], loc.slot)
	if err != nil {
		return nil, err
	}
	timestamp, _, err := t.bp.ReadFromPage(t.Name, chains[ColTimestamp][loc.chain], loc.slot)
	if err != nil {
		return nil, err
	}
	schema, _, err := t.bp.ReadFromPage(t.Name, chains[ColSchema][loc.chain], loc.slot)
	if err != nil {
		return nil, err
	}

	cols := make([]int64, t.NumColumns)
	present := make([]bool, t.NumColumns)
	for i := 0; i < t.NumColumns; i++ {
		v, ok, err := t.bp.ReadFromPage(t.Name, chains[i+numMetaColumns][loc.chain], loc.slot)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lserr.Wrap(lserr.ErrIO, "missing column slot")
		}
		cols[i] = v
		present[i] = true
	}

	return &Record{
		RID: rid, Key: cols[t.Key], Columns: cols, Present: present,
		Indirection: indirection, Timestamp: timestamp, SchemaEncoding: uint64(schema),
	}, nil
}

// Update writes a new tail record over base rid and overlays non-absent
// positions of newValues into the base record in place. present[i] == false
// means "leave column i unchanged." Mirrors table.py's update_record.
func (t *Table) Update(rid int64, newValues []int64, present []bool) error {
	if len(newValues) != t.NumColumns || len(present) != t.NumColumns {
		return lserr.Wrap(lserr.ErrInvalidArgument, "column count mismatch")
	}

	base, err := t.Get(rid)
	if err != nil {
		return err
	}

	tailRID := t.allocRID()
	timestamp := t.nowMicros()

	t.mu.Lock()
	tailChain, err := t.ensureCapacityLocked(t.tailPages, pager.Tail)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	var schema uint64
	newRow := make([]int64, t.NumColumns)
	copy(newRow, base.Columns)
	for i, ok := range present {
		if ok {
			newRow[i] = newValues[i]
			schema |= 1 << uint(i)
		}
	}

	tailIndirection := base.RID
	if base.Indirection != base.RID {
		tailIndirection = base.Indirection
	}
	if err := t.appendMeta(t.tailPages, tailChain, tailIndirection, tailRID, timestamp, schema); err != nil {
		return err
	}
	// The tail record keeps the pre-update values, so one step back along the
	// indirection chain yields the row as it was before this update.
	for i, v := range base.Columns {
		if ok, err := t.bp.WriteToPage(t.Name, t.tailPages[i+numMetaColumns][tailChain], v, -1); err != nil {
			return err
		} else if !ok {
			return lserr.Wrap(lserr.ErrIO, "failed to append tail column value")
		}
	}
	tailSlot, err := t.bp.GetNumRecords(t.Name, t.tailPages[ColIndirection][tailChain])
	if err != nil {
		return err
	}
	tailSlot--

	t.mu.Lock()
	t.pageDirectory[tailRID] = location{kind: KindTail, chain: tailChain, slot: tailSlot}
	t.mu.Unlock()

	if err := t.overwriteBase(rid, tailRID, timestamp, schema, newValues, present); err != nil {
		return err
	}

	oldValues := make([]int64, t.NumColumns)
	copy(oldValues, base.Columns)
	for i, ok := range present {
		if ok {
			oldValues[i] = base.Columns[i]
		}
	}
	_ = t.idx.UpdateIndex(rid, oldValues, newRow)

	t.mu.Lock()
	t.numUpdates++
	due := t.numUpdates%t.MergeThreshold == 0 && time.Since(t.lastMerge) > t.MergeInterval
	t.mu.Unlock()
	if due {
		_ = t.Merge()
	}
	return nil
}

// overwriteBase rewrites base rid's non-absent user columns in place and
// its metadata, per table.py's _update_base_record.
func (t *Table) overwriteBase(rid, indirection, timestamp int64, schema uint64, values []int64, present []bool) error {
	t.mu.RLock()
	loc, ok := t.pageDirectory[rid]
	t.mu.RUnlock()
	if !ok || loc.kind != KindBase {
		return lserr.Wrap(lserr.ErrNotFound, "base record missing during overwrite")
	}

	for i, v := range values {
		if !present[i] {
			continue
		}
		if _, err := t.bp.WriteToPage(t.Name, t.basePages[i+numMetaColumns][loc.chain], v, loc.slot); err != nil {
			return err
		}
	}
	writes := []struct {
		col int
		val int64
	}{
		{ColIndirection, indirection},
		{ColTimestamp, timestamp},
		{ColSchema, int64(schema)},
	}
	for _, w := range writes {
		if _, err := t.bp.WriteToPage(t.Name, t.basePages[w.col][loc.chain], w.val, loc.slot); err != nil {
			return err
		}
	}
	return nil
}

// Select resolves key via keyColumn's index to its current rid and returns
// it projected through mask. This is spec §6's `select` operation;
// `SelectVersion` below implements its versioned sibling, and Select is
// equivalent to `SelectVersion` at relative version 0.
func (t *Table) Select(key int64, keyColumn int, mask []bool) (*Record, error) {
	rid, err := t.idx.Locate(keyColumn, key)
	if err != nil {
		return nil, err
	}
	return t.SelectVersion(rid, 0, mask)
}

// SelectVersionByKey resolves key via keyColumn's index to its current rid
// and returns its record as of the given relative version. This is spec
// §6's `select_version` operation; SelectVersion below is the rid-based
// primitive it's built on.
func (t *Table) SelectVersionByKey(key int64, keyColumn, version int, mask []bool) (*Record, error) {
	rid, err := t.idx.Locate(keyColumn, key)
	if err != nil {
		return nil, err
	}
	return t.SelectVersion(rid, version, mask)
}

// SelectVersion walks the indirection chain back |version| steps (version
// <= 0) from rid's current base record, flooring at the oldest available
// tail record (or the base itself) if the chain is shorter. Returns the
// record projected through mask (mask[i] == false zeroes Present[i]).
func (t *Table) SelectVersion(rid int64, version int, mask []bool) (*Record, error) {
	if version > 0 {
		return nil, lserr.Wrap(lserr.ErrInvalidArgument, "relative version must be <= 0")
	}
	rec, err := t.Get(rid)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return project(rec, mask), nil
	}

	steps := -version
	visited := map[int64]struct{}{}
	current := rec
	for i := 0; i < steps; i++ {
		if current.Indirection == current.RID || current.Indirection == rid {
			break // chain terminator: floor here, per the base's own rid
		}
		if _, seen := visited[current.Indirection]; seen {
			return nil, lserr.Wrap(lserr.ErrInvalidArgument, "cyclic indirection chain detected")
		}
		next, err := t.Get(current.Indirection)
		if err != nil {
			break // chain shorter than requested: floor at oldest available
		}
		visited[current.Indirection] = struct{}{}
		current = next
	}
	return project(current, mask), nil
}

func project(rec *Record, mask []bool) *Record {
	if mask == nil {
		return rec
	}
	cols := make([]int64, len(rec.Columns))
	present := make([]bool, len(rec.Present))
	for i := range cols {
		if i < len(mask) && mask[i] {
			cols[i] = rec.Columns[i]
			present[i] = rec.Present[i]
		}
	}
	return &Record{
		RID: rec.RID, Key: rec.Key, Columns: cols, Present: present,
		Indirection: rec.Indirection, Timestamp: rec.Timestamp, SchemaEncoding: rec.SchemaEncoding,
	}
}

// Sum returns the sum of column across every live primary-key value in
// [begin, end]. Duplicate keys in the primary index (should they occur)
// are deduplicated, first rid wins.
func (t *Table) Sum(begin, end int64, column int) (int64, error) {
	rids, err := t.idx.LocateRange(begin, end, t.Key)
	if err != nil {
		return 0, err
	}
	seenKey := make(map[int64]bool)
	var total int64
	for _, rid := range rids {
		rec, err := t.Get(rid)
		if err != nil {
			continue
		}
		if seenKey[rec.Key] {
			continue
		}
		seenKey[rec.Key] = true
		if column < 0 || column >= len(rec.Columns) {
			return 0, lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
		}
		total += rec.Columns[column]
	}
	return total, nil
}

// SumVersion is Sum projected through the version chain, per spec §4.4.
func (t *Table) SumVersion(begin, end int64, column, version int) (int64, error) {
	rids, err := t.idx.LocateRange(begin, end, t.Key)
	if err != nil {
		return 0, err
	}
	if column < 0 || column >= t.NumColumns {
		return 0, lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
	}
	mask := make([]bool, t.NumColumns)
	mask[column] = true
	seenKey := make(map[int64]bool)
	var total int64
	for _, rid := range rids {
		rec, err := t.Get(rid)
		if err != nil {
			continue
		}
		if seenKey[rec.Key] {
			continue
		}
		seenKey[rec.Key] = true
		versioned, err := t.SelectVersion(rid, version, mask)
		if err != nil {
			continue
		}
		total += versioned.Columns[column]
	}
	return total, nil
}

// Delete marks rid's base record deleted and scrubs it from the primary
// index. Secondary indices are left stale, per spec §4.4/§9: readers must
// filter deleted kinds.
func (t *Table) Delete(rid int64) error {
	t.mu.Lock()
	loc, ok := t.pageDirectory[rid]
	if !ok || loc.kind != KindBase {
		t.mu.Unlock()
		return lserr.Wrap(lserr.ErrNotFound, "no live base record for that rid")
	}
	t.pageDirectory[rid] = location{kind: KindDeleted}
	t.mu.Unlock()

	rec, err := t.readAt(loc, rid)
	if err == nil {
		_ = t.idx.RemoveRecord(rid, []int64{rec.Key})
	}
	return nil
}

// Merge consolidates every base record's tail chain into the base slot and
// marks visited tail rids merged. Idempotent: a base record with no
// non-self-loop indirection is skipped. Mirrors table.py's __merge.
func (t *Table) Merge() error {
	t.mu.RLock()
	snapshot := make(map[int64]location, len(t.pageDirectory))
	for rid, loc := range t.pageDirectory {
		snapshot[rid] = loc
	}
	t.mu.RUnlock()

	for rid, loc := range snapshot {
		if loc.kind != KindBase {
			continue
		}
		base, err := t.readAt(loc, rid)
		if err != nil || base.Indirection == rid {
			continue
		}

		var tailChain []int64
		visited := map[int64]struct{}{rid: {}}
		cursor := base.Indirection
		for {
			if _, seen := visited[cursor]; seen {
				break
			}
			t.mu.RLock()
			cloc, ok := t.pageDirectory[cursor]
			t.mu.RUnlock()
			if !ok || cloc.kind != KindTail {
				break
			}
			tailChain = append(tailChain, cursor)
			visited[cursor] = struct{}{}
			tailRec, err := t.readAt(cloc, cursor)
			if err != nil {
				break
			}
			if tailRec.Indirection == cursor {
				break
			}
			cursor = tailRec.Indirection
		}
		if len(tailChain) == 0 {
			continue
		}

		// Tail records hold pre-update values and the base slot already holds
		// the latest ones, so only the tails' schema bits are folded in.
		finalValues := make([]int64, t.NumColumns)
		copy(finalValues, base.Columns)
		var finalSchema uint64
		for i := len(tailChain) - 1; i >= 0; i-- {
			t.mu.RLock()
			tloc := t.pageDirectory[tailChain[i]]
			t.mu.RUnlock()
			tailRec, err := t.readAt(tloc, tailChain[i])
			if err != nil {
				continue
			}
			for c := 0; c < t.NumColumns; c++ {
				if tailRec.SchemaEncoding&(1<<uint(c)) != 0 {
					finalSchema |= 1 << uint(c)
				}
			}
		}

		present := make([]bool, t.NumColumns)
		for i := range present {
			present[i] = true
		}
		if err := t.overwriteBase(rid, rid, t.nowMicros(), finalSchema, finalValues, present); err != nil {
			return err
		}

		t.mu.Lock()
		for _, tr := range tailChain {
			t.pageDirectory[tr] = location{kind: KindMerged}
		}
		t.lastMerge = time.Now()
		t.mu.Unlock()
	}
	return nil
}

// RollbackRecord restores rid's base values from whatever record its
// current indirection points to, undoing the most recent update. Used by
// transaction abort.
func (t *Table) RollbackRecord(rid int64) error {
	rec, err := t.Get(rid)
	if err != nil {
		return err
	}
	if rec.Indirection == rid {
		return lserr.Wrap(lserr.ErrInvalidArgument, "nothing to roll back")
	}
	prev, err := t.Get(rec.Indirection)
	if err != nil {
		return err
	}
	present := make([]bool, t.NumColumns)
	for i := range present {
		present[i] = true
	}
	return t.overwriteBase(rid, prev.Indirection, t.nowMicros(), prev.SchemaEncoding, prev.Columns, present)
}

// Increment adds 1 to column's current value for the record located by the
// primary index at key, via Update.
func (t *Table) Increment(key int64, column int) error {
	rid, err := t.idx.Locate(t.Key, key)
	if err != nil {
		return err
	}
	rec, err := t.Get(rid)
	if err != nil {
		return err
	}
	if column < 0 || column >= t.NumColumns {
		return lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
	}
	newValues := make([]int64, t.NumColumns)
	present := make([]bool, t.NumColumns)
	newValues[column] = rec.Columns[column] + 1
	present[column] = true
	return t.Update(rid, newValues, present)
}

// LocateByKey resolves key in the primary index to its current rid.
func (t *Table) LocateByKey(key int64) (int64, error) {
	return t.idx.Locate(t.Key, key)
}

// LocEntry is the exported, JSON-able shape of a page-directory entry, per
// spec §6's "page_directory (rid→[kind,chain,slot])".
type LocEntry struct {
	Kind  Kind
	Chain int
	Slot  int
}

// Meta is the on-disk metadata shape for one table: everything needed to
// reconstruct it without replaying every insert/update, per spec §6's
// "<table>_metadata.json".
type Meta struct {
	NumColumns     int
	Key            int
	PageDirectory  map[int64]LocEntry
	BaseChainLen   int
	TailChainLen   int
	NumRecords     uint64
	NumUpdates     uint64
	NextRID        int64
	IndexedColumns []int // columns with a secondary index, key excluded
}

// Export snapshots t's durable state for persistence.
func (t *Table) Export() Meta {
	t.mu.RLock()
	defer t.mu.RUnlock()

	dir := make(map[int64]LocEntry, len(t.pageDirectory))
	for rid, loc := range t.pageDirectory {
		dir[rid] = LocEntry{Kind: loc.kind, Chain: loc.chain, Slot: loc.slot}
	}

	var indexed []int
	for c := 0; c < t.NumColumns; c++ {
		if c != t.Key && t.idx.HasIndex(c) {
			indexed = append(indexed, c)
		}
	}

	t.nextRIDMu.Lock()
	nextRID := t.nextRID
	t.nextRIDMu.Unlock()

	return Meta{
		NumColumns:     t.NumColumns,
		Key:            t.Key,
		PageDirectory:  dir,
		BaseChainLen:   len(t.basePages[0]),
		TailChainLen:   len(t.tailPages[0]),
		NumRecords:     t.numRecords,
		NumUpdates:     t.numUpdates,
		NextRID:        nextRID,
		IndexedColumns: indexed,
	}
}

// Restore reconstructs a Table from previously Export-ed metadata, backed
// by bp. The primary index and every previously-indexed secondary column
// are rebuilt by scanning the reconstructed page directory, matching
// db.py's open()/Table.from_metadata round trip.
func Restore(name string, bp *bufferpool.Bufferpool, meta Meta) *Table {
	total := meta.NumColumns + numMetaColumns
	t := &Table{
		Name:           name,
		Key:            meta.Key,
		NumColumns:     meta.NumColumns,
		TotalColumns:   total,
		bp:             bp,
		pageDirectory:  make(map[int64]location, len(meta.PageDirectory)),
		basePages:      make([][]pager.ID, total),
		tailPages:      make([][]pager.ID, total),
		nextRID:        meta.NextRID,
		numRecords:     meta.NumRecords,
		numUpdates:     meta.NumUpdates,
		MergeThreshold: 10,
		MergeInterval:  60 * time.Second,
		lastMerge:      time.Unix(0, 0),
	}
	for rid, loc := range meta.PageDirectory {
		t.pageDirectory[rid] = location{kind: loc.Kind, chain: loc.Chain, slot: loc.Slot}
	}
	for c := 0; c < total; c++ {
		t.basePages[c] = make([]pager.ID, meta.BaseChainLen)
		for i := range t.basePages[c] {
			t.basePages[c][i] = pager.ID{Kind: pager.Base, Column: c, Chain: i}
		}
		t.tailPages[c] = make([]pager.ID, meta.TailChainLen)
		for i := range t.tailPages[c] {
			t.tailPages[c][i] = pager.ID{Kind: pager.Tail, Column: c, Chain: i}
		}
	}

	t.idx = index.New(meta.NumColumns, meta.Key, nil)
	_ = t.idx.CreateIndex(meta.Key, t)
	for _, col := range meta.IndexedColumns {
		_ = t.idx.CreateIndex(col, t)
	}
	return t
}
