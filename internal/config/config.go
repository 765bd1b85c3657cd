// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory snapshot batch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// RebuildInterval is the period of the competitive zone rebuild.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`

	// Lookback bounds how old a previous observation may be and still count
	// as a movement baseline. Zero disables the bound.
	Lookback time.Duration `koanf:"lookback"`

	// Retention is how long superseded snapshots are kept in memory.
	Retention time.Duration `koanf:"retention"`

	// ReferenceCategory and ReferencePosition pick the item whose ahead-set
	// defines the competitive zone population.
	ReferenceCategory string `koanf:"reference_category"`
	ReferencePosition int    `koanf:"reference_position"`

	// MaxCandidates caps the tournament candidate set.
	MaxCandidates int `koanf:"max_candidates"`

	// ContextRadius is how many zone neighbours are returned on each side.
	ContextRadius int `koanf:"context_radius"`

	// SlowPathLimit bounds concurrent uncached lookups.
	SlowPathLimit int `koanf:"slow_path_limit"`

	// SlowTimeout bounds one shared slow-path computation.
	SlowTimeout time.Duration `koanf:"slow_timeout"`

	// ParallelThreshold and RankerWorkers control pooled beat counting.
	ParallelThreshold int `koanf:"parallel_threshold"`
	RankerWorkers     int `koanf:"ranker_workers"`

	// DataDir is where zone generations are persisted. Ignored when InMemory.
	DataDir  string `koanf:"data_dir"`
	InMemory bool   `koanf:"in_memory"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         1_024,
		WorkerCount:       runtime.NumCPU(),
		RebuildInterval:   15 * time.Minute,
		Lookback:          7 * 24 * time.Hour,
		Retention:         48 * time.Hour,
		ReferenceCategory: "",
		ReferencePosition: 50,
		MaxCandidates:     500,
		ContextRadius:     7,
		SlowPathLimit:     8,
		SlowTimeout:       30 * time.Second,
		ParallelThreshold: 128,
		RankerWorkers:     runtime.NumCPU(),
		DataDir:           "./data/zone",
		InMemory:          false,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.RebuildInterval <= 0:
		return fmt.Errorf("%w: rebuild_interval must be positive", ErrInvalidConfig)
	case c.Lookback < 0 || c.Retention < 0:
		return fmt.Errorf("%w: lookback and retention must not be negative", ErrInvalidConfig)
	case c.ReferencePosition < 1 || c.ReferencePosition > 50:
		return fmt.Errorf("%w: reference_position must be in [1, 50]", ErrInvalidConfig)
	case c.MaxCandidates <= 0:
		return fmt.Errorf("%w: max_candidates must be positive", ErrInvalidConfig)
	case c.ContextRadius < 0:
		return fmt.Errorf("%w: context_radius must not be negative", ErrInvalidConfig)
	case c.SlowPathLimit <= 0:
		return fmt.Errorf("%w: slow_path_limit must be positive", ErrInvalidConfig)
	case c.SlowTimeout <= 0:
		return fmt.Errorf("%w: slow_timeout must be positive", ErrInvalidConfig)
	case !c.InMemory && c.DataDir == "":
		return fmt.Errorf("%w: data_dir is required unless in_memory is set", ErrInvalidConfig)
	}
	return nil
}
