package zone

import (
	"time"

	"github.com/nbunney/rrcompanion/internal/adapters/zonestore"
	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithReference pins the reference item to a category and position.
func WithReference(category string, position int) Option {
	return func(c *Cache) {
		c.refCategory = category
		if position > 0 {
			c.refPosition = position
		}
	}
}

// WithLookback bounds how old a prior entry may be and still serve as a
// movement baseline.
func WithLookback(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.lookback = d
		}
	}
}

// WithStore sets where committed generations are persisted.
func WithStore(s zonestore.Store) Option {
	return func(c *Cache) {
		if s != nil {
			c.store = s
		}
	}
}

// WithResolver sets the ahead-set resolver.
func WithResolver(r *ahead.Resolver) Option {
	return func(c *Cache) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithRanker sets the tournament ranker.
func WithRanker(r *tournament.Ranker) Option {
	return func(c *Cache) {
		if r != nil {
			c.ranker = r
		}
	}
}

// WithRelevance sets how the reference item's relevant categories are found.
func WithRelevance(fn ahead.Relevance) Option {
	return func(c *Cache) {
		c.relevance = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}
