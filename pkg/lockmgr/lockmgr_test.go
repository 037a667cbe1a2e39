package lockmgr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lstorecore/lstore/pkg/lserr"
)

func TestAcquireSharedThenSharedFromDifferentTxnSucceeds(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Shared))
	require.NoError(t, lm.Acquire("t2", 1, Shared))
}

func TestAcquireExclusiveConflictsWithExistingShared(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Shared))
	err := lm.Acquire("t2", 1, Exclusive)
	assert.True(t, errors.Is(err, lserr.ErrLockConflict))
}

func TestAcquireSharedConflictsWithExistingExclusive(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))
	err := lm.Acquire("t2", 1, Shared)
	assert.True(t, errors.Is(err, lserr.ErrLockConflict))
}

func TestSameTxnUpgradesSharedToExclusiveInPlace(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Shared))
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))

	excl := Exclusive
	assert.True(t, lm.HasLock("t1", 1, &excl))
}

func TestSameTxnReacquiringSameModeIsNoop(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))
}

func TestReleaseFreesRecordForOtherTransactions(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))
	lm.Release("t1", 1)

	require.NoError(t, lm.Acquire("t2", 1, Exclusive))
}

func TestReleaseAllDropsEveryLockHeldByTransaction(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Shared))
	require.NoError(t, lm.Acquire("t1", 2, Exclusive))

	lm.ReleaseAll("t1")

	assert.False(t, lm.HasLock("t1", 1, nil))
	assert.False(t, lm.HasLock("t1", 2, nil))
	require.NoError(t, lm.Acquire("t2", 2, Exclusive))
}

func TestHasLockWithNilModeMatchesAnyMode(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Shared))
	assert.True(t, lm.HasLock("t1", 1, nil))

	excl := Exclusive
	assert.False(t, lm.HasLock("t1", 1, &excl))
}

func TestClearAllRemovesEveryLock(t *testing.T) {
	lm := New()
	require.NoError(t, lm.Acquire("t1", 1, Exclusive))
	lm.ClearAll()
	assert.False(t, lm.HasLock("t1", 1, nil))

	require.NoError(t, lm.Acquire("t2", 1, Exclusive))
}
