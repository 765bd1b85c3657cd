package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

var t0 = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func batch(cat string, at time.Time, ids ...string) model.Batch {
	b := model.Batch{Category: cat, CapturedAt: at}
	for i, id := range ids {
		b.Placements = append(b.Placements, model.Placement{ItemID: id, Position: i + 1})
	}
	return b
}

func newStore(t *testing.T, opts ...Option) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_ApplyPublishesView(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if s.View().HasMain() {
		t.Fatal("empty store should publish a view without main")
	}

	mustApply(t, s, batch(model.MainCategory, t0, "m2", "m1"))
	mustApply(t, s, batch(model.MainCategory, t0.Add(15*time.Minute), "m1", "m2"))
	mustApply(t, s, batch("Sci-Fi", t0, "a", "b"))

	v := s.View()
	if r, ok := v.MainRank("m1"); !ok || r != 1 {
		t.Errorf("expected m1 at rank 1, got %d %v", r, ok)
	}
	if p, ok := v.PreviousMain().Position("m1"); !ok || p != 2 {
		t.Errorf("expected m1 at 2 on previous main, got %d %v", p, ok)
	}
	if v.List("sci_fi") == nil {
		t.Fatalf("expected category normalized to sci_fi, got %v", v.Categories())
	}
	if got := v.Partial(); len(got) != 1 || got[0] != "sci_fi" {
		t.Errorf("expected sci_fi partial, got %v", got)
	}
	if !s.Observed(ctx, "a") || s.Observed(ctx, "zzz") {
		t.Error("observed set mismatch")
	}
	if n := s.Count(ctx); n != 3 {
		t.Errorf("expected 3 batches, got %d", n)
	}
}

func TestMemoryStore_ReapplySameKeyReplaces(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	mustApply(t, s, batch("fantasy", t0, "a", "b"))
	mustApply(t, s, batch("fantasy", t0, "b", "a"))

	if n := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 batch after replace, got %d", n)
	}
	if p, _ := s.View().List("fantasy").Position("b"); p != 1 {
		t.Errorf("expected b at 1 after replace, got %d", p)
	}
}

func TestMemoryStore_OutOfOrderBatchKeepsLatest(t *testing.T) {
	s := newStore(t)

	mustApply(t, s, batch("fantasy", t0.Add(time.Hour), "new"))
	mustApply(t, s, batch("fantasy", t0, "old"))

	if _, ok := s.View().List("fantasy").Position("new"); !ok {
		t.Error("late arrival of an older batch replaced the latest list")
	}
}

func TestMemoryStore_RejectsInvalidBatch(t *testing.T) {
	s := newStore(t)

	bad := model.Batch{Category: "fantasy", CapturedAt: t0, Placements: []model.Placement{{ItemID: "a", Position: 51}}}
	if err := s.Apply(context.Background(), bad); !errors.Is(err, model.ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
	if err := s.Apply(context.Background(), batch("!!!", t0, "a")); !errors.Is(err, model.ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch for a category that normalizes to nothing, got %v", err)
	}
}

func TestMemoryStore_BestPositionNeverRegresses(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic seed for reproducible testing
	best := model.MaxPosition + 1
	for i := 0; i < 200; i++ {
		pos := rng.Intn(model.MaxPosition) + 1
		at := t0.Add(time.Duration(i) * time.Minute)
		b := model.Batch{Category: "horror", CapturedAt: at, Placements: []model.Placement{{ItemID: "x", Position: pos}}}
		mustApply(t, s, b)

		if pos < best {
			best = pos
		}
		got, err := s.BestPositions(ctx, "x")
		if err != nil {
			t.Fatalf("best positions: %v", err)
		}
		if len(got) != 1 || got[0].Position != best {
			t.Fatalf("step %d: expected best %d, got %+v", i, best, got)
		}
	}
}

func TestMemoryStore_UpdateBest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if ok, err := s.UpdateBest(ctx, "x", "mystery", 10, t0); err != nil || !ok {
		t.Fatalf("first record should update: %v %v", ok, err)
	}
	if ok, _ := s.UpdateBest(ctx, "x", "mystery", 10, t0.Add(time.Hour)); ok {
		t.Error("equal position must not update")
	}
	if ok, _ := s.UpdateBest(ctx, "x", "mystery", 12, t0.Add(time.Hour)); ok {
		t.Error("worse position must not update")
	}
	if ok, _ := s.UpdateBest(ctx, "x", "mystery", 3, t0.Add(2*time.Hour)); !ok {
		t.Error("better position should update")
	}
	got, _ := s.BestPositions(ctx, "x")
	if got[0].Position != 3 || !got[0].AchievedAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("unexpected record %+v", got[0])
	}
	if _, err := s.UpdateBest(ctx, "x", "mystery", 0, t0); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
	if _, err := s.BestPositions(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Retention(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, WithRetention(time.Hour))

	for i := 0; i < 6; i++ {
		mustApply(t, s, batch("fantasy", t0.Add(time.Duration(i)*30*time.Minute), "a"))
	}
	// newest at +150m, cutoff +90m: +90m, +120m, +150m survive
	if n := s.Count(ctx); n != 3 {
		t.Errorf("expected 3 batches within retention, got %d", n)
	}

	mustApply(t, s, batch(model.MainCategory, t0, "m"))
	mustApply(t, s, batch(model.MainCategory, t0.Add(48*time.Hour), "m"))
	if s.View().PreviousMain() == nil {
		t.Error("previous main must survive retention")
	}
}

func TestMemoryStore_Catalog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.PutItem(ctx, model.Item{ID: "q", Title: "Quiet", Tags: []string{"Mystery"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	item, err := s.Item(ctx, "q")
	if err != nil || item.Title != "Quiet" {
		t.Fatalf("unexpected item %+v %v", item, err)
	}
	if _, err := s.Item(ctx, "missing"); !errors.Is(err, model.ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
	if err := s.PutItem(ctx, model.Item{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestMemoryStore_ConcurrentApplyAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cat := fmt.Sprintf("cat%d", w)
				_ = s.Apply(ctx, batch(cat, t0.Add(time.Duration(i)*time.Minute), "a", "b", "c"))
				_ = s.View().Categories()
			}
		}(w)
	}
	wg.Wait()

	if got := len(s.View().Categories()); got != 8 {
		t.Errorf("expected 8 categories, got %d", got)
	}
}

func TestMemoryStore_ApplyAfterClose(t *testing.T) {
	s := NewMemoryStore(context.Background())
	_ = s.Close()

	if err := s.Apply(context.Background(), batch("fantasy", t0, "a")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func mustApply(t *testing.T, s *MemoryStore, b model.Batch) {
	t.Helper()
	if err := s.Apply(context.Background(), b); err != nil {
		t.Fatalf("apply %s: %v", b.Key(), err)
	}
}
