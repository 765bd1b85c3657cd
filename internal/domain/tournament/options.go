package tournament

import "github.com/nbunney/rrcompanion/pkg/logger"

// Default ranker configuration.
const (
	DefaultStartRank         = 51
	DefaultMaxCandidates     = 500
	DefaultParallelThreshold = 128
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithStartRank sets the rank assigned to the first candidate.
func WithStartRank(r int) Option {
	return func(rk *Ranker) {
		if r > 0 {
			rk.startRank = r
		}
	}
}

// WithMaxCandidates caps the number of candidates a single Rank call accepts.
func WithMaxCandidates(n int) Option {
	return func(rk *Ranker) {
		if n > 0 {
			rk.maxCandidates = n
		}
	}
}

// WithParallelThreshold sets the candidate count above which beat counts
// are computed on the worker pool.
func WithParallelThreshold(n int) Option {
	return func(rk *Ranker) {
		if n > 0 {
			rk.parallelThreshold = n
		}
	}
}

// WithWorkers sets the size of the worker pool. One or less disables it.
func WithWorkers(n int) Option {
	return func(rk *Ranker) {
		rk.workers = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(rk *Ranker) {
		if l != nil {
			rk.logger = l
		}
	}
}
