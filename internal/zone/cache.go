// Package zone maintains the competitive zone: the main list plus the
// estimated order of the items just below it, recomputed periodically and
// served from memory.
//
// Rebuild computes a whole generation off to the side, commits it to the
// zone store and only then swaps it in. Readers always see the last
// committed generation.
package zone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nbunney/rrcompanion/internal/adapters/zonestore"
	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/movement"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// Source supplies the View a rebuild works on.
type Source interface {
	View() *board.View
}

// Report summarizes one committed rebuild.
type Report struct {
	GenerationID      string         `json:"generation_id"`
	Entries           int            `json:"entries"`
	Estimated         int            `json:"estimated"`
	Added             int            `json:"added"`
	Removed           int            `json:"removed"`
	Moves             map[string]int `json:"moves"`
	ReferenceItem     string         `json:"reference_item,omitempty"`
	ReferenceCategory string         `json:"reference_category,omitempty"`
	Truncated         bool           `json:"truncated"`
	Took              time.Duration  `json:"took"`
}

// Cache is the competitive zone cache.
type Cache struct {
	source    Source
	store     zonestore.Store
	resolver  *ahead.Resolver
	ranker    *tournament.Ranker
	relevance ahead.Relevance

	refCategory string
	refPosition int
	lookback    time.Duration
	now         func() time.Time
	logger      logger.Logger

	rebuilding sync.Mutex
	current    atomic.Pointer[index]
}

type index struct {
	gen  *model.Generation
	byID map[string]int
}

func newIndex(gen *model.Generation) *index {
	ix := &index{gen: gen, byID: make(map[string]int, len(gen.Entries))}
	for i, e := range gen.Entries {
		ix.byID[e.ItemID] = i
	}
	return ix
}

// New constructs a Cache over source. It starts empty; call Load to warm
// it from the store or Rebuild to compute a generation.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:      source,
		refPosition: model.MaxPosition,
		lookback:    7 * 24 * time.Hour,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("zone")
	}
	if c.store == nil {
		c.store = zonestore.NewMemory()
	}
	if c.resolver == nil {
		c.resolver = ahead.NewResolver()
	}
	if c.ranker == nil {
		c.ranker = tournament.NewRanker()
	}
	c.current.Store(newIndex(&model.Generation{}))
	return c
}

// Load installs the generation committed in the store, if any.
func (c *Cache) Load(ctx context.Context) error {
	gen, err := c.store.Load(ctx)
	if errors.Is(err, zonestore.ErrNoGeneration) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load zone: %w", err)
	}
	c.current.Store(newIndex(gen))
	c.logger.Info(ctx, "zone generation restored",
		logger.String("generation", gen.ID),
		logger.Int("entries", len(gen.Entries)),
		logger.Time("built_at", gen.BuiltAt),
	)
	return nil
}

// Rebuild recomputes the zone from the current View. Overlapping calls fail
// fast with ErrRebuildInProgress. On any other failure the previous
// generation stays in place and the error wraps model.ErrCacheRebuild.
func (c *Cache) Rebuild(ctx context.Context) (Report, error) {
	if !c.rebuilding.TryLock() {
		metrics.RecordRebuild("skipped", 0)
		return Report{}, ErrRebuildInProgress
	}
	defer c.rebuilding.Unlock()

	start := time.Now()
	rep, err := c.rebuild(ctx)
	rep.Took = time.Since(start)
	if err != nil {
		metrics.RecordRebuild("failed", rep.Took)
		metrics.RecordErrorByComponent("zone", "rebuild")
		c.logger.Error(ctx, "zone rebuild failed; keeping previous generation",
			logger.Error(err),
			logger.String("generation", c.Generation().ID),
		)
		return Report{}, fmt.Errorf("%w: %w", model.ErrCacheRebuild, err)
	}
	metrics.RecordRebuild("ok", rep.Took)
	c.logger.Info(ctx, "zone rebuilt",
		logger.String("generation", rep.GenerationID),
		logger.Int("entries", rep.Entries),
		logger.Int("added", rep.Added),
		logger.Int("removed", rep.Removed),
		logger.String("reference", rep.ReferenceItem),
		logger.Duration("took", rep.Took),
	)
	return rep, nil
}

func (c *Cache) rebuild(ctx context.Context) (Report, error) {
	v := c.source.View()
	if !v.HasMain() {
		return Report{}, model.ErrNoRecentData
	}
	now := c.now()
	prev := c.current.Load()
	rep := Report{Moves: map[string]int{}}

	population, err := c.population(ctx, v, &rep)
	if err != nil {
		return Report{}, err
	}
	ranked, err := c.ranker.Rank(ctx, v, population)
	if err != nil {
		return Report{}, fmt.Errorf("rank population: %w", err)
	}

	entries := make([]model.ZoneEntry, 0, v.Main().Len()+len(ranked))
	for _, id := range v.Main().Items() {
		rank, _ := v.MainRank(id)
		entries = append(entries, model.ZoneEntry{
			ItemID:    id,
			Position:  rank,
			Movement:  c.mainMovement(v, prev, id, rank),
			UpdatedAt: now,
		})
	}
	for _, r := range ranked {
		var mv model.Movement
		if i, ok := prev.byID[r.ItemID]; ok {
			p := prev.gen.Entries[i]
			mv = movement.Advance(p.Movement, r.Rank, movement.Observation{Position: p.Position, At: p.UpdatedAt}, now, c.lookback)
		} else {
			mv = movement.Advance(model.Movement{}, r.Rank, movement.Observation{}, now, c.lookback)
		}
		entries = append(entries, model.ZoneEntry{
			ItemID:    r.ItemID,
			Position:  r.Rank,
			Estimated: true,
			Movement:  mv,
			UpdatedAt: now,
		})
	}

	gen := &model.Generation{
		ID:         uuid.NewString(),
		BuiltAt:    now,
		SnapshotAt: v.CapturedAt(),
		Entries:    entries,
	}
	if err := c.store.Replace(ctx, gen); err != nil {
		return Report{}, err
	}
	next := newIndex(gen)
	c.current.Store(next)

	rep.GenerationID = gen.ID
	rep.Entries = len(entries)
	rep.Estimated = len(ranked)
	for _, e := range entries {
		rep.Moves[string(e.Movement.Move)]++
		if _, ok := prev.byID[e.ItemID]; !ok {
			rep.Added++
		}
	}
	for id := range prev.byID {
		if _, ok := next.byID[id]; !ok {
			rep.Removed++
		}
	}
	metrics.RecordGeneration(len(entries), now, rep.Moves)
	return rep, nil
}

// population resolves the reference item's ahead-set and returns the
// non-main part of it plus the reference itself.
func (c *Cache) population(ctx context.Context, v *board.View, rep *Report) ([]string, error) {
	ref, cat := c.reference(v)
	if ref == "" {
		return nil, nil
	}
	rep.ReferenceItem, rep.ReferenceCategory = ref, cat

	var relevant []string
	if c.relevance != nil {
		relevant = c.relevance(ctx, ref)
	}
	res, err := c.resolver.Resolve(ctx, v, ref, relevant)
	if err != nil {
		return nil, fmt.Errorf("resolve reference %s: %w", ref, err)
	}

	out := make([]string, 0, res.Size()+1)
	for _, id := range res.IDs() {
		if _, onMain := v.MainRank(id); !onMain {
			out = append(out, id)
		}
	}
	if !res.OnMain {
		out = append(out, ref)
	}
	if limit := c.ranker.MaxCandidates(); len(out) > limit {
		c.logger.Warn(ctx, "zone population over candidate cap; keeping best placed",
			logger.Int("population", len(out)),
			logger.Int("max_candidates", limit),
		)
		out = tournament.Window(v, out, limit, tournament.KeepHead)
		rep.Truncated = true
	}
	return out, nil
}

// reference picks the item at the configured (category, position). Without
// that category the smallest non-main category is used, ties by name, and
// the position clamps to the list length. An item that is also on main is
// skipped for the next one down the list; when a list runs out the next
// smallest category is tried.
func (c *Cache) reference(v *board.View) (item, category string) {
	for _, name := range c.referenceOrder(v) {
		l := v.List(name)
		for i := min(c.refPosition, l.Len()) - 1; i < l.Len(); i++ {
			if _, onMain := v.MainRank(l.At(i)); !onMain {
				return l.At(i), name
			}
		}
	}
	return "", ""
}

// referenceOrder lists the configured category first, then the other
// non-empty categories from smallest to largest.
func (c *Cache) referenceOrder(v *board.View) []string {
	order := make([]string, 0, len(v.Categories()))
	if v.List(c.refCategory).Len() > 0 {
		order = append(order, c.refCategory)
	}
	rest := make([]string, 0, len(v.Categories()))
	for _, name := range v.Categories() {
		if name != c.refCategory && v.List(name).Len() > 0 {
			rest = append(rest, name)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return v.List(rest[i]).Len() < v.List(rest[j]).Len()
	})
	return append(order, rest...)
}

// mainMovement compares against the previous main snapshot, falling back to
// the prior generation for items that were not on it.
func (c *Cache) mainMovement(v *board.View, prev *index, id string, rank int) model.Movement {
	at := v.Main().CapturedAt
	var carried model.Movement
	i, cached := prev.byID[id]
	if cached {
		carried = prev.gen.Entries[i].Movement
	}
	if pm := v.PreviousMain(); pm != nil {
		if p, ok := pm.Position(id); ok {
			return movement.Advance(carried, rank, movement.Observation{Position: p, At: pm.CapturedAt}, at, c.lookback)
		}
	}
	if cached {
		e := prev.gen.Entries[i]
		return movement.Advance(carried, rank, movement.Observation{Position: e.Position, At: e.UpdatedAt}, at, c.lookback)
	}
	return movement.Advance(carried, rank, movement.Observation{}, at, c.lookback)
}

// Generation returns the committed generation. It must not be modified.
func (c *Cache) Generation() *model.Generation {
	return c.current.Load().gen
}

// Position returns the cached entry for id.
func (c *Cache) Position(id string) (model.ZoneEntry, bool) {
	ix := c.current.Load()
	i, ok := ix.byID[id]
	if !ok {
		return model.ZoneEntry{}, false
	}
	return ix.gen.Entries[i], true
}

// Range returns the entries whose position is within [start, end].
func (c *Cache) Range(start, end int) []model.ZoneEntry {
	entries := c.current.Load().gen.Entries
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].Position >= start })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].Position > end })
	if lo >= hi {
		return nil
	}
	return append([]model.ZoneEntry(nil), entries[lo:hi]...)
}

// Neighbors returns up to radius entries on each side of id, id included.
func (c *Cache) Neighbors(id string, radius int) ([]model.ZoneEntry, bool) {
	ix := c.current.Load()
	i, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	lo := max(0, i-radius)
	hi := min(len(ix.gen.Entries), i+radius+1)
	return append([]model.ZoneEntry(nil), ix.gen.Entries[lo:hi]...), true
}

// Len returns the number of committed entries.
func (c *Cache) Len() int {
	return len(c.current.Load().gen.Entries)
}
