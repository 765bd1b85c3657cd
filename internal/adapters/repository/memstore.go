package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/tags"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// In-memory Store implementation.
//
// Writers serialize on mu and finish every Apply by publishing a new
// immutable board.View through an atomic pointer. Readers load the pointer
// and never take the lock.

// MemoryStore keeps every category's snapshot history, the best-position
// records and the item catalog in memory.
type MemoryStore struct {
	mu sync.RWMutex
	// batches per category ordered by capture time ascending
	history  map[string][]model.Batch
	observed map[string]struct{}
	best     map[string]map[string]model.BestPosition
	items    map[string]model.Item

	retention             time.Duration
	metricsUpdateInterval time.Duration

	view   atomic.Pointer[board.View]
	closed atomic.Bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a store with configuration options. A
// background goroutine refreshes store metrics until ctx is done or Close
// is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		history:               make(map[string][]model.Batch),
		observed:              make(map[string]struct{}),
		best:                  make(map[string]map[string]model.BestPosition),
		items:                 make(map[string]model.Item),
		retention:             48 * time.Hour,
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view.Store(board.Empty())

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine. Apply fails afterwards; reads keep working.
func (s *MemoryStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopChan)
	s.wg.Wait()
	return nil
}

// Apply implements Store.Apply.
func (s *MemoryStore) Apply(ctx context.Context, b model.Batch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	b.Category = tags.Normalize(b.Category)
	if err := b.Validate(); err != nil {
		metrics.RecordBatchError()
		return err
	}
	b.CapturedAt = b.CapturedAt.UTC()
	b.Placements = append([]model.Placement(nil), b.Placements...)

	s.mu.Lock()
	s.insertLocked(b)
	improved := 0
	for _, p := range b.Placements {
		s.observed[p.ItemID] = struct{}{}
		if s.updateBestLocked(p.ItemID, b.Category, p.Position, b.CapturedAt) {
			improved++
		}
	}
	s.pruneLocked(b.Category)
	s.publishLocked()
	s.mu.Unlock()

	metrics.RecordBatchApplied(b.Category, len(b.Placements), time.Since(start))
	metrics.RecordBestImprovements(improved)
	return nil
}

// insertLocked stores b in capture order, replacing a batch with the same key.
func (s *MemoryStore) insertLocked(b model.Batch) {
	h := s.history[b.Category]
	i := sort.Search(len(h), func(i int) bool { return !h[i].CapturedAt.Before(b.CapturedAt) })
	if i < len(h) && h[i].CapturedAt.Equal(b.CapturedAt) {
		h[i] = b
		return
	}
	h = append(h, model.Batch{})
	copy(h[i+1:], h[i:])
	h[i] = b
	s.history[b.Category] = h
}

// pruneLocked drops batches older than the retention window. The newest
// batch always stays, and main keeps one more for movement.
func (s *MemoryStore) pruneLocked(category string) {
	if s.retention <= 0 {
		return
	}
	h := s.history[category]
	keep := 1
	if category == model.MainCategory {
		keep = 2
	}
	if len(h) <= keep {
		return
	}
	cutoff := h[len(h)-1].CapturedAt.Add(-s.retention)
	drop := 0
	for drop < len(h)-keep && h[drop].CapturedAt.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		s.history[category] = append([]model.Batch(nil), h[drop:]...)
	}
}

func (s *MemoryStore) publishLocked() {
	latest := make(map[string]model.Batch, len(s.history))
	for cat, h := range s.history {
		if len(h) > 0 {
			latest[cat] = h[len(h)-1]
		}
	}
	var prev *model.Batch
	if h := s.history[model.MainCategory]; len(h) > 1 {
		p := h[len(h)-2]
		prev = &p
	}
	s.view.Store(board.Build(latest, prev))
}

// View implements Store.View.
func (s *MemoryStore) View() *board.View {
	return s.view.Load()
}

// Observed implements Store.Observed.
func (s *MemoryStore) Observed(_ context.Context, itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.observed[itemID]
	return ok
}

// UpdateBest implements Store.UpdateBest.
func (s *MemoryStore) UpdateBest(_ context.Context, itemID, category string, position int, at time.Time) (bool, error) {
	if position < 1 || position > model.MaxPosition {
		return false, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[itemID] = struct{}{}
	return s.updateBestLocked(itemID, tags.Normalize(category), position, at.UTC()), nil
}

func (s *MemoryStore) updateBestLocked(itemID, category string, position int, at time.Time) bool {
	byCat, ok := s.best[itemID]
	if !ok {
		byCat = make(map[string]model.BestPosition)
		s.best[itemID] = byCat
	}
	if old, ok := byCat[category]; ok && position >= old.Position {
		return false
	}
	byCat[category] = model.BestPosition{ItemID: itemID, Category: category, Position: position, AchievedAt: at}
	return true
}

// BestPositions implements Store.BestPositions.
func (s *MemoryStore) BestPositions(_ context.Context, itemID string) ([]model.BestPosition, error) {
	s.mu.RLock()
	byCat := s.best[itemID]
	out := make([]model.BestPosition, 0, len(byCat))
	for _, bp := range byCat {
		out = append(out, bp)
	}
	s.mu.RUnlock()

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", itemID, ErrNotFound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// PutItem implements Store.PutItem.
func (s *MemoryStore) PutItem(_ context.Context, item model.Item) error {
	if item.ID == "" {
		return fmt.Errorf("%w: empty id", model.ErrUnknownItem)
	}
	item.Tags = append([]string(nil), item.Tags...)
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return nil
}

// Item implements Store.Item.
func (s *MemoryStore) Item(_ context.Context, itemID string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return model.Item{}, fmt.Errorf("%s: %w", itemID, model.ErrUnknownItem)
	}
	return item, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, h := range s.history {
		n += len(h)
	}
	return n
}

// startMetricsUpdater starts a background goroutine that updates store metrics.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoredSnapshots(s.Count(ctx))
			}
		}
	}()
}
