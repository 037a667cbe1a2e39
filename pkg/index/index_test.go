package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lstorecore/lstore/pkg/lserr"
)

type fakeSource struct {
	rows map[int64][]int64
}

func (f *fakeSource) ForEachRecord(fn func(rid int64, columns []int64) bool) {
	for rid, cols := range f.rows {
		if !fn(rid, cols) {
			return
		}
	}
}

func TestNewIndexesKeyColumnFromSource(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{
		1: {10, 100},
		2: {20, 200},
	}}
	idx := New(2, 0, src)

	rid, err := idx.Locate(0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rid)

	assert.True(t, idx.HasIndex(0))
	assert.False(t, idx.HasIndex(1))
}

func TestLocateMissingValueReturnsNotFound(t *testing.T) {
	idx := New(2, 0, &fakeSource{rows: map[int64][]int64{}})
	_, err := idx.Locate(0, 999)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))
}

func TestLocateUnindexedColumnReturnsNotFound(t *testing.T) {
	idx := New(2, 0, &fakeSource{rows: map[int64][]int64{}})
	_, err := idx.Locate(1, 5)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))
}

func TestCreateIndexOnSecondaryColumn(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{
		1: {10, 100},
		2: {20, 200},
	}}
	idx := New(2, 0, src)
	require.NoError(t, idx.CreateIndex(1, src))

	rid, err := idx.Locate(1, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rid)
}

func TestDropIndexOnKeyColumnFails(t *testing.T) {
	idx := New(2, 0, &fakeSource{rows: map[int64][]int64{}})
	err := idx.DropIndex(0)
	assert.True(t, errors.Is(err, lserr.ErrInvalidArgument))
}

func TestDropIndexThenLocateFails(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{1: {10, 100}}}
	idx := New(2, 0, src)
	require.NoError(t, idx.CreateIndex(1, src))
	require.NoError(t, idx.DropIndex(1))

	_, err := idx.Locate(1, 100)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))
}

func TestLocateRangeReturnsSortedAscending(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{
		1: {30, 0},
		2: {10, 0},
		3: {20, 0},
		4: {99, 0},
	}}
	idx := New(1, 0, src)

	rids, err := idx.LocateRange(10, 30, 0)
	require.NoError(t, err)
	require.Len(t, rids, 3)
	assert.Equal(t, []int64{2, 3, 1}, rids)
}

func TestUpdateIndexMovesEntryToNewValue(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{1: {10}}}
	idx := New(1, 0, src)

	require.NoError(t, idx.UpdateIndex(1, []int64{10}, []int64{15}))

	_, err := idx.Locate(0, 10)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))

	rid, err := idx.Locate(0, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rid)
}

func TestUpdateIndexInsertOnlyForNewRecord(t *testing.T) {
	idx := New(1, 0, &fakeSource{rows: map[int64][]int64{}})
	require.NoError(t, idx.UpdateIndex(5, nil, []int64{42}))

	rid, err := idx.Locate(0, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rid)
}

func TestRemoveRecordDeletesFromAllIndexedColumns(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{1: {10, 100}}}
	idx := New(2, 0, src)
	require.NoError(t, idx.CreateIndex(1, src))

	require.NoError(t, idx.RemoveRecord(1, []int64{10, 100}))

	_, err := idx.Locate(0, 10)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))
	_, err = idx.Locate(1, 100)
	assert.True(t, errors.Is(err, lserr.ErrNotFound))
}

func TestRebuildAllOnlyTouchesIndexedColumns(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{1: {10, 100}}}
	idx := New(3, 0, src)
	require.NoError(t, idx.CreateIndex(1, src))

	src.rows[2] = []int64{20, 200}
	require.NoError(t, idx.RebuildAll(src))

	rid, err := idx.Locate(0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rid)

	assert.False(t, idx.HasIndex(2), "column 2 was never indexed and rebuild must not create it")
}

func TestDuplicateValuesAcrossDifferentRidsBothLocatableViaRange(t *testing.T) {
	src := &fakeSource{rows: map[int64][]int64{
		1: {5},
		2: {5},
	}}
	idx := New(1, 0, src)
	rids, err := idx.LocateRange(5, 5, 0)
	require.NoError(t, err)
	assert.Len(t, rids, 2)
}
