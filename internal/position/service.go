// Package position answers "where does this item stand" queries.
//
// Items on the latest main list get their exact rank. Anything else is
// served from the competitive zone cache when it is there, and otherwise
// computed on demand from the current View without touching the cache.
package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/movement"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// Kind tells exact and estimated results apart.
type Kind string

// Result kinds.
const (
	Exact     Kind = "exact"
	Estimated Kind = "estimated"
)

// Source records where an estimated rank came from.
type Source string

// Result sources.
const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
)

// ContextItem is a neighbour of the looked-up item.
type ContextItem struct {
	ItemID   string         `json:"item_id"`
	Rank     int            `json:"rank"`
	Movement model.Movement `json:"movement"`
	Target   bool           `json:"target,omitempty"`
}

// Result is the answer to a lookup.
type Result struct {
	ItemID       string         `json:"item_id"`
	Kind         Kind           `json:"kind"`
	Rank         int            `json:"rank"`
	Movement     model.Movement `json:"movement"`
	AheadCount   int            `json:"ahead_count"`
	ToClimb      int            `json:"to_climb"`
	ContextItems []ContextItem  `json:"context_items,omitempty"`
	Source       Source         `json:"source,omitempty"`
}

// Views supplies the current board.View.
type Views interface {
	View() *board.View
}

// Zone is the read side of the competitive zone cache.
type Zone interface {
	Position(id string) (model.ZoneEntry, bool)
	Neighbors(id string, radius int) ([]model.ZoneEntry, bool)
}

// Service resolves lookups. It is safe for concurrent use.
type Service struct {
	views     Views
	zone      Zone
	resolver  *ahead.Resolver
	ranker    *tournament.Ranker
	relevance ahead.Relevance

	radius      int
	slowLimit   int
	slowTimeout time.Duration
	lookback    time.Duration
	now         func() time.Time
	logger      logger.Logger

	group singleflight.Group
	slow  *semaphore.Weighted
}

// NewService constructs a Service.
func NewService(views Views, zone Zone, opts ...Option) *Service {
	s := &Service{
		views:       views,
		zone:        zone,
		radius:      DefaultContextRadius,
		slowLimit:   DefaultSlowPathLimit,
		slowTimeout: DefaultSlowTimeout,
		lookback:    7 * 24 * time.Hour,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("position")
	}
	if s.resolver == nil {
		s.resolver = ahead.NewResolver()
	}
	if s.ranker == nil {
		s.ranker = tournament.NewRanker()
	}
	s.slow = semaphore.NewWeighted(int64(s.slowLimit))
	return s
}

// Lookup returns the position of id.
//
// Errors: model.ErrNoRecentData when nothing has been ingested yet,
// model.ErrNotRankable when id never appeared on any leaderboard.
func (s *Service) Lookup(ctx context.Context, id string) (Result, error) {
	if id == "" {
		return Result{}, ErrEmptyID
	}
	res, err := s.lookup(ctx, id)
	switch {
	case err == nil:
		if res.Kind == Exact {
			metrics.RecordLookup(string(Exact))
		} else {
			metrics.RecordLookup(string(res.Source))
		}
	case errors.Is(err, model.ErrNotRankable):
		metrics.RecordLookup("not_ranked")
	case errors.Is(err, model.ErrNoRecentData):
		metrics.RecordLookup("no_data")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		metrics.RecordLookup("cancelled")
	default:
		metrics.RecordLookup("error")
		metrics.RecordErrorByComponent("position", "lookup")
		s.logger.Error(ctx, "position lookup failed", logger.String("item_id", id), logger.Error(err))
	}
	return res, err
}

func (s *Service) lookup(ctx context.Context, id string) (Result, error) {
	v := s.views.View()
	if !v.HasMain() {
		// warm cache from a previous run, nothing ingested yet
		if e, ok := s.zone.Position(id); ok {
			return s.fromCache(e), nil
		}
		return Result{}, model.ErrNoRecentData
	}
	if rank, ok := v.MainRank(id); ok {
		return s.exact(v, id, rank), nil
	}
	if e, ok := s.zone.Position(id); ok && e.Estimated {
		return s.fromCache(e), nil
	}

	// The shared computation outlives any single caller; each caller only
	// stops waiting on its own context.
	start := time.Now()
	flight := s.group.DoChan(id, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.slowTimeout)
		defer cancel()
		return s.compute(cctx, v, id)
	})
	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("lookup %s: %w", id, ctx.Err())
	case r := <-flight:
		metrics.RecordSlowPath(time.Since(start), r.Shared)
		if r.Err != nil {
			return Result{}, fmt.Errorf("lookup %s: %w", id, r.Err)
		}
		return r.Val.(Result), nil
	}
}

func (s *Service) exact(v *board.View, id string, rank int) Result {
	var mv model.Movement
	if e, ok := s.zone.Position(id); ok && !e.Estimated && e.Position == rank {
		mv = e.Movement
	} else {
		var prev movement.Observation
		if pm := v.PreviousMain(); pm != nil {
			if p, ok := pm.Position(id); ok {
				prev = movement.Observation{Position: p, At: pm.CapturedAt}
			}
		}
		mv = movement.Advance(model.Movement{}, rank, prev, v.Main().CapturedAt, s.lookback)
	}
	return Result{
		ItemID:     id,
		Kind:       Exact,
		Rank:       rank,
		Movement:   mv,
		AheadCount: rank - 1,
	}
}

func (s *Service) fromCache(e model.ZoneEntry) Result {
	res := Result{
		ItemID:     e.ItemID,
		Kind:       Estimated,
		Rank:       e.Position,
		Movement:   e.Movement,
		AheadCount: e.Position - 1,
		ToClimb:    toClimb(e.Position),
		Source:     SourceCache,
	}
	if !e.Estimated {
		res.Kind, res.ToClimb, res.Source = Exact, 0, ""
		return res
	}
	neighbours, _ := s.zone.Neighbors(e.ItemID, s.radius)
	for _, n := range neighbours {
		res.ContextItems = append(res.ContextItems, ContextItem{
			ItemID:   n.ItemID,
			Rank:     n.Position,
			Movement: n.Movement,
			Target:   n.ItemID == e.ItemID,
		})
	}
	return res
}

// compute ranks the non-main part of id's ahead-set. When that exceeds the
// ranker's cap, only the candidates placed closest to the target are ranked;
// they take the ranks directly above it.
func (s *Service) compute(ctx context.Context, v *board.View, id string) (Result, error) {
	if err := s.slow.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer s.slow.Release(1)

	var relevant []string
	if s.relevance != nil {
		relevant = s.relevance(ctx, id)
	}
	res, err := s.resolver.Resolve(ctx, v, id, relevant)
	if err != nil {
		return Result{}, err
	}
	if res.OnMain {
		return s.exact(v, id, res.Rank), nil
	}

	candidates := make([]string, 0, res.Size())
	for _, a := range res.IDs() {
		if _, onMain := v.MainRank(a); !onMain {
			candidates = append(candidates, a)
		}
	}
	if limit := s.ranker.MaxCandidates(); len(candidates) > limit {
		s.logger.Debug(ctx, "ranking tail window only",
			logger.String("item_id", id),
			logger.Int("candidates", len(candidates)),
			logger.Int("window", limit),
		)
		candidates = tournament.Window(v, candidates, limit, tournament.KeepTail)
	}
	ranked, err := s.ranker.Rank(ctx, v, candidates)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	out := Result{
		ItemID:     id,
		Kind:       Estimated,
		Rank:       res.Rank,
		Movement:   model.Movement{Move: model.MoveNew, LastMoveAt: now},
		AheadCount: res.Rank - 1,
		ToClimb:    toClimb(res.Rank),
		Source:     SourceComputed,
	}
	offset := res.Rank - len(ranked) - s.ranker.StartRank()
	for _, r := range ranked[max(0, len(ranked)-s.radius):] {
		mv := model.Movement{Move: model.MoveNew, LastMoveAt: now}
		if e, ok := s.zone.Position(r.ItemID); ok {
			mv = e.Movement
		}
		out.ContextItems = append(out.ContextItems, ContextItem{
			ItemID:   r.ItemID,
			Rank:     r.Rank + offset,
			Movement: mv,
		})
	}
	out.ContextItems = append(out.ContextItems, ContextItem{ItemID: id, Rank: res.Rank, Movement: out.Movement, Target: true})

	s.logger.Debug(ctx, "position computed",
		logger.String("item_id", id),
		logger.Int("rank", res.Rank),
		logger.Int("ranked", len(ranked)),
	)
	return out, nil
}

// toClimb is how many places an item at rank must gain to reach the main list.
func toClimb(rank int) int {
	return max(0, rank-(model.MaxPosition-1))
}
