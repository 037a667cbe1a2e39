package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lstorecore/lstore/pkg/bufferpool"
	"github.com/lstorecore/lstore/pkg/pager"
)

func newTestTable(t *testing.T, numColumns, key int) *Table {
	t.Helper()
	fp, err := pager.NewFilePager(t.TempDir())
	require.NoError(t, err)
	bp := bufferpool.New(fp, 200, nil)
	return New("orders", numColumns, key, bp)
}

func allPresent(n int) []bool {
	p := make([]bool, n)
	for i := range p {
		p[i] = true
	}
	return p
}

func TestInsertThenGetReturnsInsertedValues(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	rec, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, int64(92106429), rec.Key)

	got, err := tbl.Get(rec.RID)
	require.NoError(t, err)
	assert.Equal(t, []int64{92106429, 1, 2, 3, 4}, got.Columns)
	assert.Equal(t, rec.RID, got.Indirection, "fresh base record self-loops")
}

func TestSelectByPrimaryKeyReturnsProjectedCurrentRecord(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	_, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)

	rec, err := tbl.Select(92106429, 0, allPresent(5))
	require.NoError(t, err)
	assert.Equal(t, []int64{92106429, 1, 2, 3, 4}, rec.Columns)
}

func TestSelectVersionByKeyMatchesSelectVersionByRID(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	inserted, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)
	present := []bool{false, false, true, false, true}
	require.NoError(t, tbl.Update(inserted.RID, []int64{0, 0, 9, 0, 10}, present))

	byKey, err := tbl.SelectVersionByKey(92106429, 0, -1, allPresent(5))
	require.NoError(t, err)
	byRID, err := tbl.SelectVersion(inserted.RID, -1, allPresent(5))
	require.NoError(t, err)
	assert.Equal(t, byRID.Columns, byKey.Columns)
}

func TestUpdateOverlaysOnlyPresentColumns(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	rec, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)

	present := []bool{false, false, true, false, true}
	require.NoError(t, tbl.Update(rec.RID, []int64{0, 0, 9, 0, 10}, present))

	current, err := tbl.SelectVersion(rec.RID, 0, allPresent(5))
	require.NoError(t, err)
	assert.Equal(t, []int64{92106429, 1, 9, 3, 10}, current.Columns)
}

func TestSelectVersionMinusOneReturnsPreUpdateValues(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	rec, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)
	present := []bool{false, false, true, false, true}
	require.NoError(t, tbl.Update(rec.RID, []int64{0, 0, 9, 0, 10}, present))

	prior, err := tbl.SelectVersion(rec.RID, -1, allPresent(5))
	require.NoError(t, err)
	assert.Equal(t, []int64{92106429, 1, 2, 3, 4}, prior.Columns)
}

func TestSelectVersionZeroMatchesCurrentRecordExactly(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	rec, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)

	current, err := tbl.Get(rec.RID)
	require.NoError(t, err)
	versioned, err := tbl.SelectVersion(rec.RID, 0, allPresent(5))
	require.NoError(t, err)

	if diff := cmp.Diff(current, versioned); diff != "" {
		t.Errorf("select_version(0) must match the current record (-current +version_0):\n%s", diff)
	}
}

func TestSelectVersionMinusTwoFloorsAtOldestWhenChainShort(t *testing.T) {
	tbl := newTestTable(t, 5, 0)
	rec, err := tbl.Insert([]int64{92106429, 1, 2, 3, 4})
	require.NoError(t, err)
	present := []bool{false, false, true, false, true}
	require.NoError(t, tbl.Update(rec.RID, []int64{0, 0, 9, 0, 10}, present))

	v1, err := tbl.SelectVersion(rec.RID, -1, allPresent(5))
	require.NoError(t, err)
	v2, err := tbl.SelectVersion(rec.RID, -2, allPresent(5))
	require.NoError(t, err)
	assert.Equal(t, v1.Columns, v2.Columns)
}

func TestSumOverKeyRange(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	for k := int64(1); k <= 10; k++ {
		_, err := tbl.Insert([]int64{k, k})
		require.NoError(t, err)
	}
	total, err := tbl.Sum(3, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
}

func TestDeleteRemovesFromPrimaryIndexAndHidesRecord(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	rec, err := tbl.Insert([]int64{1, 100})
	require.NoError(t, err)

	require.NoError(t, tbl.Delete(rec.RID))

	_, err = tbl.Get(rec.RID)
	assert.Error(t, err)
	_, err = tbl.LocateByKey(1)
	assert.Error(t, err)
}

func TestMergeConsolidatesTailChainIntoBase(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	rec, err := tbl.Insert([]int64{1, 10, 20})
	require.NoError(t, err)

	require.NoError(t, tbl.Update(rec.RID, []int64{0, 99, 0}, []bool{false, true, false}))
	require.NoError(t, tbl.Update(rec.RID, []int64{0, 0, 77}, []bool{false, false, true}))

	require.NoError(t, tbl.Merge())

	current, err := tbl.Get(rec.RID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 99, 77}, current.Columns)
	assert.Equal(t, rec.RID, current.Indirection, "merge retires the tail chain to a self-loop")
}

func TestRollbackRecordRestoresPriorIndirectionState(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	rec, err := tbl.Insert([]int64{1, 10})
	require.NoError(t, err)
	require.NoError(t, tbl.Update(rec.RID, []int64{0, 20}, []bool{false, true}))

	require.NoError(t, tbl.RollbackRecord(rec.RID))

	restored, err := tbl.Get(rec.RID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), restored.Columns[1])
}

func TestIncrementAddsOneToColumn(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	_, err := tbl.Insert([]int64{1, 10})
	require.NoError(t, err)

	require.NoError(t, tbl.Increment(1, 1))

	rid, err := tbl.LocateByKey(1)
	require.NoError(t, err)
	rec, err := tbl.Get(rid)
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.Columns[1])
}

func TestInsertAcrossManyPagesAllocatesNewChainPages(t *testing.T) {
	tbl := newTestTable(t, 1, 0)
	for k := int64(0); k < 1500; k++ {
		_, err := tbl.Insert([]int64{k})
		require.NoError(t, err)
	}
	rid, err := tbl.LocateByKey(1499)
	require.NoError(t, err)
	rec, err := tbl.Get(rid)
	require.NoError(t, err)
	assert.Equal(t, int64(1499), rec.Key)
}
