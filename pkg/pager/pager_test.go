package pager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lstorecore/lstore/pkg/page"
)

func TestIDString(t *testing.T) {
	id := ID{Kind: Base, Column: 3, Chain: 7}
	assert.Equal(t, "base_3_7", id.String())
}

func TestReadMissingPageYieldsEmptyPage(t *testing.T) {
	fp, err := NewFilePager(t.TempDir())
	require.NoError(t, err)

	p, err := fp.ReadPage("orders", ID{Kind: Base, Column: 0, Chain: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Count())
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fp, err := NewFilePager(t.TempDir())
	require.NoError(t, err)

	p := page.New()
	_, _ = p.Append(123)
	_, _ = p.Append(-456)

	id := ID{Kind: Tail, Column: 2, Chain: 1}
	require.NoError(t, fp.WritePage("orders", id, p))

	loaded, err := fp.ReadPage("orders", id)
	require.NoError(t, err)
	require.Equal(t, p.Count(), loaded.Count())

	for i := 0; i < p.Count(); i++ {
		want, _ := p.Read(i)
		got, present := loaded.Read(i)
		require.True(t, present)
		assert.Equal(t, want, got)
	}
}

func TestWriteCreatesTableDirectory(t *testing.T) {
	root := t.TempDir()
	fp, err := NewFilePager(root)
	require.NoError(t, err)

	id := ID{Kind: Base, Column: 0, Chain: 0}
	require.NoError(t, fp.WritePage("accounts", id, page.New()))

	assert.DirExists(t, filepath.Join(root, "accounts"))
	assert.FileExists(t, filepath.Join(root, "accounts", id.String()+".db"))
}
