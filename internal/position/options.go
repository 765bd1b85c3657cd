package position

import (
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

// Default tuning.
const (
	DefaultContextRadius = 7
	DefaultSlowPathLimit = 8
	DefaultSlowTimeout   = 30 * time.Second
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithContextRadius sets how many neighbours are returned on each side.
func WithContextRadius(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.radius = n
		}
	}
}

// WithSlowPathLimit bounds how many uncached computations run at once.
func WithSlowPathLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slowLimit = n
		}
	}
}

// WithSlowTimeout bounds one shared slow-path computation. It runs
// detached from the callers' contexts, so this is its only deadline.
func WithSlowTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.slowTimeout = d
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

// WithResolver sets the ahead-set resolver.
func WithResolver(r *ahead.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithRanker sets the tournament ranker used by the slow path.
func WithRanker(r *tournament.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithRelevance sets how an item's relevant categories are found.
func WithRelevance(fn ahead.Relevance) Option {
	return func(s *Service) {
		s.relevance = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
