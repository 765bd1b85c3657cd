// Package ahead resolves the set of items that heuristically outrank a target
// on the global leaderboard.
//
// The result is an upper bound on the target's rank, not an exact
// computation: the global order beyond the main top 50 is never observed, so
// it is reconstructed from the partial orders of the category leaderboards.
//
//  1. Every main item is ahead.
//  2. In every category the target appears in, every item placed strictly
//     better is ahead.
//  3. In every relevant category the target does not appear in, every item
//     placed better than the worst-placed item already ahead is ahead.
//
// Step 3 is a single pass in sorted category order. A category visited early
// is not revisited when a later category grows the set, so the result is not
// closed under the relation.
package ahead

import (
	"context"
	"fmt"
	"sort"

	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// History answers whether an item was ever observed on any leaderboard.
type History interface {
	Observed(ctx context.Context, itemID string) bool
}

// Relevance returns the categories an item is relevant to beyond the ones it
// is listed in. It returns nil when nothing is known about the item.
type Relevance func(ctx context.Context, itemID string) []string

// Result is the resolved ahead-set of a target.
type Result struct {
	Target string
	// OnMain is set when the target is on the latest main list; Rank is then exact.
	OnMain bool
	// Rank is the exact main rank. Otherwise it is |Ahead|+1 plus any main
	// slots the latest main list leaves unfilled, so it is always above
	// model.MaxPosition.
	Rank  int
	Ahead map[string]struct{}
}

// Size returns the number of items ahead of the target.
func (r Result) Size() int { return len(r.Ahead) }

// Contains reports whether id is ahead of the target.
func (r Result) Contains(id string) bool {
	_, ok := r.Ahead[id]
	return ok
}

// IDs returns the ahead-set sorted by id.
func (r Result) IDs() []string {
	out := make([]string, 0, len(r.Ahead))
	for id := range r.Ahead {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Resolver computes ahead-sets against a board.View. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	history History
	logger  logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithHistory sets the source used to tell never-ranked items apart.
// Without it, an item counts as observed only if it is on a latest list.
func WithHistory(h History) Option {
	return func(r *Resolver) {
		if h != nil {
			r.history = h
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("ahead")
	}
	return r
}

// Resolve computes target's ahead-set. relevant lists the categories the
// target is relevant to beyond the ones it appears in; it may be empty.
//
// Errors: model.ErrNoRecentData when v has no main list, model.ErrNotRankable
// when the target was never observed.
func (r *Resolver) Resolve(ctx context.Context, v *board.View, target string, relevant []string) (Result, error) {
	if !v.HasMain() {
		return Result{}, model.ErrNoRecentData
	}

	res := Result{Target: target, Ahead: make(map[string]struct{}, model.MaxPosition*2)}
	if rank, ok := v.MainRank(target); ok {
		res.OnMain = true
		res.Rank = rank
		for _, id := range v.Main().BetterThan(rank) {
			res.Ahead[id] = struct{}{}
		}
		return res, nil
	}

	present := v.CategoriesOf(target)
	if len(present) == 0 && !r.observed(ctx, target) {
		return Result{}, model.ErrNotRankable
	}
	r.notePartial(ctx, v)

	// step 1
	for _, id := range v.Main().Items() {
		res.Ahead[id] = struct{}{}
	}

	// step 2
	in := make(map[string]struct{}, len(present))
	for _, cat := range present {
		in[cat] = struct{}{}
		l := v.List(cat)
		pos, _ := l.Position(target)
		for _, id := range l.BetterThan(pos) {
			res.Ahead[id] = struct{}{}
		}
	}

	// step 3
	for _, cat := range missing(relevant, in) {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("resolve %s: %w", target, err)
		}
		l := v.List(cat)
		worst := 0
		for _, id := range l.Items() {
			if _, ok := res.Ahead[id]; ok {
				if p, _ := l.Position(id); p > worst {
					worst = p
				}
			}
		}
		if worst == 0 {
			continue
		}
		for _, id := range l.BetterThan(worst) {
			res.Ahead[id] = struct{}{}
		}
	}

	delete(res.Ahead, target)
	// a short main list still reserves the top MaxPosition ranks
	res.Rank = len(res.Ahead) + 1 + max(0, model.MaxPosition-v.Main().Len())
	return res, nil
}

func (r *Resolver) observed(ctx context.Context, id string) bool {
	if r.history == nil {
		return false
	}
	return r.history.Observed(ctx, id)
}

func (r *Resolver) notePartial(ctx context.Context, v *board.View) {
	for _, cat := range v.Partial() {
		metrics.RecordPartialCategory(cat)
		r.logger.Debug(ctx, "category served from older snapshot",
			logger.String("category", cat),
			logger.Time("view_captured_at", v.CapturedAt()),
			logger.Error(model.ErrPartialCategoryData),
		)
	}
}

// missing returns the sorted relevant categories not in present, skipping main.
func missing(relevant []string, present map[string]struct{}) []string {
	out := make([]string, 0, len(relevant))
	seen := make(map[string]struct{}, len(relevant))
	for _, c := range relevant {
		if c == model.MainCategory {
			continue
		}
		if _, ok := present[c]; ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
