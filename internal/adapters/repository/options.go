package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithRetention sets how long superseded snapshots are kept, measured back
// from each category's newest capture time. Zero keeps everything.
func WithRetention(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
