package service

import (
	"time"

	"github.com/nbunney/rrcompanion/internal/adapters/zonestore"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRebuildInterval sets the period of the zone rebuild loop. Zero
// disables the loop; RebuildNow still works.
func WithRebuildInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.rebuildInterval = d
		}
	}
}

// WithLookback bounds the age of a movement baseline.
func WithLookback(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.lookback = d
		}
	}
}

// WithRetention sets how long superseded snapshots are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithReference pins the zone reference item.
func WithReference(category string, position int) Option {
	return func(s *Service) {
		s.refCategory = category
		if position > 0 {
			s.refPosition = position
		}
	}
}

// WithMaxCandidates caps the tournament candidate set.
func WithMaxCandidates(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCandidates = n
		}
	}
}

// WithContextRadius sets how many neighbours a lookup returns on each side.
func WithContextRadius(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.contextRadius = n
		}
	}
}

// WithSlowPathLimit bounds concurrent uncached lookups.
func WithSlowPathLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slowPathLimit = n
		}
	}
}

// WithSlowTimeout bounds one shared slow-path computation.
func WithSlowTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.slowTimeout = d
		}
	}
}

// WithRanker tunes pooled beat counting.
func WithRanker(parallelThreshold, workers int) Option {
	return func(s *Service) {
		if parallelThreshold > 0 {
			s.parallelThreshold = parallelThreshold
		}
		if workers > 0 {
			s.rankerWorkers = workers
		}
	}
}

// WithDataDir persists zone generations under dir.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

// WithInMemory keeps zone generations in memory only.
func WithInMemory(inMemory bool) Option {
	return func(s *Service) {
		s.inMemory = inMemory
	}
}

// WithZoneStore supplies the zone store directly; it is closed on Stop.
func WithZoneStore(store zonestore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.zoneStore = store
		}
	}
}
