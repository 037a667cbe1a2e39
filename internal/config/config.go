// Package config loads engine-wide tunables from a TOML file, in the style
// of the pack's own BurntSushi/toml users rather than environment
// variables (spec §6 names none).
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Engine holds every tunable spec.md leaves as an implementation choice:
// bufferpool capacity, merge scheduling, and worker retry policy.
type Engine struct {
	BufferpoolCapacity int           `toml:"bufferpool_capacity"`
	MergeThreshold     uint64        `toml:"merge_threshold"`
	MergeInterval      time.Duration `toml:"merge_interval"`
	WorkerMaxRetries   int           `toml:"worker_max_retries"`
	WorkerBackoffBase  time.Duration `toml:"worker_backoff_base"`
}

// Default returns the tunables spec.md states explicitly: bufferpool
// capacity 1000 (§4.2), merge threshold 10 and interval 60s (table.py's
// MERGE_THRESHOLD/merge_interval, carried over per §4.4), and worker
// retry count 3 with a 100ms backoff base (§4.7).
func Default() Engine {
	return Engine{
		BufferpoolCapacity: 1000,
		MergeThreshold:     10,
		MergeInterval:      60 * time.Second,
		WorkerMaxRetries:   3,
		WorkerBackoffBase:  100 * time.Millisecond,
	}
}

// Load reads an Engine config from a TOML file at path, filling any field
// the file omits with Default()'s value.
func Load(path string) (Engine, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}
