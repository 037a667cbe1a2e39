// Package index maintains per-column value-to-rid lookups for a table, per
// spec §4.3. The primary key column is always indexed; secondary columns
// may be indexed and dropped on demand.
//
// Supplement over the original design (original_source/lstore/index.py,
// which keyed each column by an unordered map): each column's index is kept
// as a slice of (value, rid) pairs sorted by value, so locate_range can
// binary-search its bounds instead of scanning every entry.
package index

import (
	"sort"
	"sync"

	"github.com/lstorecore/lstore/pkg/lserr"
)

// entry is one (value, rid) pair within a column's sorted index.
type entry struct {
	value int64
	rid   int64
}

// RecordSource lets Index rebuild a column's entries from a table's current
// records without Index importing pkg/table (which itself depends on
// Index), matching the teacher's avoidance of import cycles between
// storage layers.
type RecordSource interface {
	// ForEachRecord calls fn once per live record with its rid and full
	// column slice, in no particular order. fn returning false stops the
	// iteration early.
	ForEachRecord(fn func(rid int64, columns []int64) bool)
}

// Index holds one sorted lookup per indexed column of a table with
// numColumns columns. key is the primary key column, indexed unconditionally
// and never droppable.
type Index struct {
	mu      sync.RWMutex
	key     int
	columns []*[]entry // nil entry means "not indexed"
}

// New returns an Index with the primary key column indexed from src.
func New(numColumns, key int, src RecordSource) *Index {
	idx := &Index{
		key:     key,
		columns: make([]*[]entry, numColumns),
	}
	_ = idx.CreateIndex(key, src)
	return idx
}

// Locate returns the rid for value in column, or lserr.ErrNotFound if the
// column is unindexed or value is absent.
func (idx *Index) Locate(column int, value int64) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	col, err := idx.columnLocked(column)
	if err != nil {
		return 0, err
	}
	i := sort.Search(len(*col), func(i int) bool { return (*col)[i].value >= value })
	if i < len(*col) && (*col)[i].value == value {
		return (*col)[i].rid, nil
	}
	return 0, lserr.Wrap(lserr.ErrNotFound, "no record with that value")
}

// LocateRange returns, in ascending key order, the rids of every entry in
// column whose value falls within [begin, end].
func (idx *Index) LocateRange(begin, end int64, column int) ([]int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	col, err := idx.columnLocked(column)
	if err != nil {
		return nil, err
	}
	lo := sort.Search(len(*col), func(i int) bool { return (*col)[i].value >= begin })
	rids := make([]int64, 0)
	for i := lo; i < len(*col) && (*col)[i].value <= end; i++ {
		rids = append(rids, (*col)[i].rid)
	}
	return rids, nil
}

func (idx *Index) columnLocked(column int) (*[]entry, error) {
	if column < 0 || column >= len(idx.columns) {
		return nil, lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
	}
	col := idx.columns[column]
	if col == nil {
		return nil, lserr.Wrap(lserr.ErrNotFound, "column is not indexed")
	}
	return col, nil
}

// CreateIndex builds a fresh index for column from src's current records.
// Rebuilds in place if the column was already indexed.
func (idx *Index) CreateIndex(column int, src RecordSource) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.createIndexLocked(column, src)
}

func (idx *Index) createIndexLocked(column int, src RecordSource) error {
	if column < 0 || column >= len(idx.columns) {
		return lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
	}
	entries := make([]entry, 0)
	if src != nil {
		src.ForEachRecord(func(rid int64, cols []int64) bool {
			if column < len(cols) {
				entries = append(entries, entry{value: cols[column], rid: rid})
			}
			return true
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })
	}
	idx.columns[column] = &entries
	return nil
}

// DropIndex removes the index on column. The primary key column can never
// be dropped.
func (idx *Index) DropIndex(column int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if column < 0 || column >= len(idx.columns) {
		return lserr.Wrap(lserr.ErrInvalidArgument, "column out of range")
	}
	if column == idx.key {
		return lserr.Wrap(lserr.ErrInvalidArgument, "cannot drop index on key column")
	}
	if idx.columns[column] == nil {
		return lserr.Wrap(lserr.ErrNotFound, "column is not indexed")
	}
	idx.columns[column] = nil
	return nil
}

// HasIndex reports whether column currently has an index.
func (idx *Index) HasIndex(column int) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return column >= 0 && column < len(idx.columns) && idx.columns[column] != nil
}

// UpdateIndex replaces the entry for rid in every indexed column, inserting
// newValues[c] in sorted position. oldValues may be nil for a brand new rid
// (insert-only, no prior entry to remove).
func (idx *Index) UpdateIndex(rid int64, oldValues, newValues []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for col, entries := range idx.columns {
		if entries == nil || col >= len(newValues) {
			continue
		}
		if oldValues != nil && col < len(oldValues) {
			removeEntry(entries, oldValues[col], rid)
		}
		insertEntry(entries, newValues[col], rid)
	}
	return nil
}

// RemoveRecord deletes rid's entry from every indexed column.
func (idx *Index) RemoveRecord(rid int64, values []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for col, entries := range idx.columns {
		if entries == nil || col >= len(values) {
			continue
		}
		removeEntry(entries, values[col], rid)
	}
	return nil
}

// RebuildAll rebuilds every currently-indexed column from src, e.g. after
// loading a table from disk.
func (idx *Index) RebuildAll(src RecordSource) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for col := range idx.columns {
		if idx.columns[col] == nil {
			continue
		}
		if err := idx.createIndexLocked(col, src); err != nil {
			return err
		}
	}
	return nil
}

func insertEntry(entries *[]entry, value, rid int64) {
	i := sort.Search(len(*entries), func(i int) bool { return (*entries)[i].value >= value })
	*entries = append(*entries, entry{})
	copy((*entries)[i+1:], (*entries)[i:])
	(*entries)[i] = entry{value: value, rid: rid}
}

func removeEntry(entries *[]entry, value, rid int64) {
	i := sort.Search(len(*entries), func(i int) bool { return (*entries)[i].value >= value })
	for ; i < len(*entries) && (*entries)[i].value == value; i++ {
		if (*entries)[i].rid == rid {
			*entries = append((*entries)[:i], (*entries)[i+1:]...)
			return
		}
	}
}
