package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecLiterals(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.BufferpoolCapacity)
	assert.Equal(t, uint64(10), cfg.MergeThreshold)
	assert.Equal(t, 60*time.Second, cfg.MergeInterval)
	assert.Equal(t, 3, cfg.WorkerMaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.WorkerBackoffBase)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`bufferpool_capacity = 250`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.BufferpoolCapacity)
	assert.Equal(t, uint64(10), cfg.MergeThreshold, "fields absent from the file keep their default")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
