// Package tournament orders candidates that sit below the observable main
// list by pairwise dominance across the category leaderboards they share.
//
// B beats A when they share at least one category and B is placed strictly
// better in any of the shared ones. A candidate's score is the number of
// distinct others that beat it; fewer is better. Ties break on the best
// single category position, then on item id, so identical inputs always
// produce identical output.
package tournament

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// rowsPerTask is how many beat-count rows one pool task computes.
const rowsPerTask = 32

// Ranked is one candidate's place in the tournament order.
type Ranked struct {
	ItemID       string `json:"item_id"`
	Rank         int    `json:"rank"`
	BeatenBy     int    `json:"beaten_by"`
	BestPosition int    `json:"best_position"`
}

// Ranker computes tournament orders. It is safe for concurrent use.
type Ranker struct {
	startRank         int
	maxCandidates     int
	parallelThreshold int
	workers           int
	logger            logger.Logger

	pool   pond.Pool
	closed atomic.Bool
}

// NewRanker constructs a Ranker. When more than one worker is configured a
// pool is started; release it with Close.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		startRank:         DefaultStartRank,
		maxCandidates:     DefaultMaxCandidates,
		parallelThreshold: DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("tournament")
	}
	if r.workers > 1 {
		r.pool = pond.NewPool(r.workers)
	}
	return r
}

// MaxCandidates returns the configured candidate cap.
func (r *Ranker) MaxCandidates() int { return r.maxCandidates }

// StartRank returns the rank given to the first candidate.
func (r *Ranker) StartRank() int { return r.startRank }

// Close stops the worker pool. Rank fails with ErrRankerClosed afterwards.
func (r *Ranker) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	if r.pool != nil {
		r.pool.StopAndWait()
	}
}

type placement struct {
	category string
	position int
}

type field struct {
	ids []string
	// per candidate placements in its non-main categories
	placements [][]placement
	// per category candidate indices ordered by position
	members map[string][]int
	pos     map[string]map[int]int
}

// Rank orders candidates against the non-main lists of v. Duplicate and
// empty ids are dropped. Candidates on no list get the worst possible score.
func (r *Ranker) Rank(ctx context.Context, v *board.View, candidates []string) ([]Ranked, error) {
	if r.closed.Load() {
		return nil, ErrRankerClosed
	}
	start := time.Now()

	f := newField(v, candidates)
	n := len(f.ids)
	if n == 0 {
		return nil, nil
	}
	if n > r.maxCandidates {
		return nil, fmt.Errorf("rank %d candidates (max %d): %w", n, r.maxCandidates, ErrTooManyCandidates)
	}

	scores := make([]int, n)
	parallel := r.pool != nil && n > r.parallelThreshold
	var err error
	if parallel {
		err = r.scoreParallel(ctx, f, scores)
	} else {
		err = scoreRange(ctx, f, scores, 0, n)
	}
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	out := make([]Ranked, n)
	for i, id := range f.ids {
		out[i] = Ranked{ItemID: id, BeatenBy: scores[i], BestPosition: f.best(i)}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BeatenBy != b.BeatenBy {
			return a.BeatenBy < b.BeatenBy
		}
		if a.BestPosition != b.BestPosition {
			return a.BestPosition < b.BestPosition
		}
		return a.ItemID < b.ItemID
	})
	for i := range out {
		out[i].Rank = r.startRank + i
	}

	metrics.RecordRankerRun(n, parallel, time.Since(start))
	r.logger.Debug(ctx, "tournament ranked",
		logger.Int("candidates", n),
		logger.Bool("parallel", parallel),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (r *Ranker) scoreParallel(ctx context.Context, f *field, scores []int) error {
	n := len(f.ids)
	group := r.pool.NewGroup()
	var (
		mu     sync.Mutex
		failed error
	)
	for lo := 0; lo < n; lo += rowsPerTask {
		lo, hi := lo, min(lo+rowsPerTask, n)
		group.Submit(func() {
			if err := scoreRange(ctx, f, scores, lo, hi); err != nil {
				mu.Lock()
				if failed == nil {
					failed = err
				}
				mu.Unlock()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return failed
}

// scoreRange fills scores[lo:hi]. Each row only writes its own slot.
func scoreRange(ctx context.Context, f *field, scores []int, lo, hi int) error {
	n := len(f.ids)
	seen := make([]int, n)
	for i := lo; i < hi; i++ {
		if (i-lo)%rowsPerTask == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(f.placements[i]) == 0 {
			scores[i] = n
			continue
		}
		// seen holds i+1 for rows that already counted a beater
		count := 0
		for _, p := range f.placements[i] {
			for _, j := range f.members[p.category] {
				if f.pos[p.category][j] >= p.position {
					break
				}
				if seen[j] != i+1 {
					seen[j] = i + 1
					count++
				}
			}
		}
		scores[i] = count
	}
	return nil
}

func newField(v *board.View, candidates []string) *field {
	ids := make([]string, 0, len(candidates))
	index := make(map[string]int, len(candidates))
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = -1
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		index[id] = i
	}

	f := &field{
		ids:        ids,
		placements: make([][]placement, len(ids)),
		members:    make(map[string][]int),
		pos:        make(map[string]map[int]int),
	}
	for _, cat := range v.Categories() {
		l := v.List(cat)
		for _, id := range l.Items() {
			i, ok := index[id]
			if !ok {
				continue
			}
			p, _ := l.Position(id)
			f.placements[i] = append(f.placements[i], placement{category: cat, position: p})
			if f.pos[cat] == nil {
				f.pos[cat] = make(map[int]int)
			}
			f.members[cat] = append(f.members[cat], i)
			f.pos[cat][i] = p
		}
	}
	return f
}

func (f *field) best(i int) int {
	best := math.MaxInt
	for _, p := range f.placements[i] {
		if p.position < best {
			best = p.position
		}
	}
	return best
}
