// Package service wires ingestion, the competitive zone cache and position
// lookups into the single service the HTTP API and CLI depend on.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbunney/rrcompanion/internal/adapters/mq/queue"
	"github.com/nbunney/rrcompanion/internal/adapters/mq/worker"
	"github.com/nbunney/rrcompanion/internal/adapters/repository"
	"github.com/nbunney/rrcompanion/internal/adapters/zonestore"
	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/tags"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/internal/position"
	"github.com/nbunney/rrcompanion/internal/zone"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

const drainTimeout = 30 * time.Second

// Service implements the API dependencies for the position engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *repository.MemoryStore
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	zoneStore zonestore.Store
	ranker    *tournament.Ranker
	cache     *zone.Cache
	positions *position.Service

	// Configuration
	workerCount       int
	queueSize         int
	rebuildInterval   time.Duration
	lookback          time.Duration
	retention         time.Duration
	refCategory       string
	refPosition       int
	maxCandidates     int
	contextRadius     int
	slowPathLimit     int
	slowTimeout       time.Duration
	parallelThreshold int
	rankerWorkers     int
	dataDir           string
	inMemory          bool

	// State
	started  bool
	cancel   context.CancelFunc
	kick     chan struct{}
	loopDone chan struct{}
	sawMain  atomic.Bool

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         1024,
		rebuildInterval:   15 * time.Minute,
		lookback:          7 * 24 * time.Hour,
		retention:         48 * time.Hour,
		refPosition:       model.MaxPosition,
		maxCandidates:     tournament.DefaultMaxCandidates,
		contextRadius:     position.DefaultContextRadius,
		slowPathLimit:     position.DefaultSlowPathLimit,
		slowTimeout:       position.DefaultSlowTimeout,
		parallelThreshold: tournament.DefaultParallelThreshold,
		rankerWorkers:     runtime.NumCPU(),
		dataDir:           "./data/zone",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the zone store, restores the last committed generation and
// starts the ingest workers and the rebuild loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting position service...")

	if s.zoneStore == nil {
		zs, err := s.openZoneStore()
		if err != nil {
			return err
		}
		s.zoneStore = zs
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.store = repository.NewMemoryStore(runCtx, repository.WithRetention(s.retention))
	relevance := ahead.FromCatalog(s.store)
	resolver := ahead.NewResolver(ahead.WithHistory(s.store))
	s.ranker = tournament.NewRanker(
		tournament.WithMaxCandidates(s.maxCandidates),
		tournament.WithParallelThreshold(s.parallelThreshold),
		tournament.WithWorkers(s.rankerWorkers),
	)
	s.cache = zone.New(s.store,
		zone.WithReference(s.refCategory, s.refPosition),
		zone.WithLookback(s.lookback),
		zone.WithStore(s.zoneStore),
		zone.WithResolver(resolver),
		zone.WithRanker(s.ranker),
		zone.WithRelevance(relevance),
	)
	if err := s.cache.Load(ctx); err != nil {
		s.logger.Warn(ctx, "could not restore zone generation; starting empty", logger.Error(err))
	}
	s.positions = position.NewService(s.store, s.cache,
		position.WithContextRadius(s.contextRadius),
		position.WithSlowPathLimit(s.slowPathLimit),
		position.WithSlowTimeout(s.slowTimeout),
		position.WithLookback(s.lookback),
		position.WithResolver(resolver),
		position.WithRanker(s.ranker),
		position.WithRelevance(relevance),
	)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, worker.WithOnApplied(s.onApplied))
	s.pool.Start(runCtx)

	s.sawMain.Store(false)
	s.kick = make(chan struct{}, 1)
	s.loopDone = make(chan struct{})
	go s.rebuildLoop(runCtx)

	s.started = true
	s.logger.Info(ctx, "position service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("rebuildInterval", s.rebuildInterval),
		logger.Int("zoneEntries", s.cache.Len()),
	)
	return nil
}

func (s *Service) openZoneStore() (zonestore.Store, error) {
	if s.inMemory {
		return zonestore.NewMemory(), nil
	}
	cfg := zonestore.DefaultConfig(s.dataDir)
	cfg.Logger = logger.Slog().With("component", "badger")
	zs, err := zonestore.OpenBadger(cfg)
	if err != nil {
		return nil, fmt.Errorf("open zone store: %w", err)
	}
	return zs, nil
}

// Stop drains queued batches, stops the rebuild loop and closes the stores.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping position service...")

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	if err := s.pool.Shutdown(drainCtx); err != nil {
		s.logger.Warn(ctx, "ingest drain incomplete", logger.Error(err))
	}
	cancel()

	s.cancel()
	<-s.loopDone

	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing snapshot store failed", logger.Error(err))
	}
	s.ranker.Close()
	if err := s.zoneStore.Close(); err != nil {
		s.logger.Error(ctx, "closing zone store failed", logger.Error(err))
	}
	s.zoneStore = nil

	s.started = false
	s.logger.Info(ctx, "position service stopped")
}

// onApplied schedules a rebuild as soon as the first main list is in.
func (s *Service) onApplied(_ context.Context, b model.Batch) {
	if b.Category != model.MainCategory || !s.sawMain.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Service) rebuildLoop(ctx context.Context) {
	defer close(s.loopDone)

	var tick <-chan time.Time
	if s.rebuildInterval > 0 {
		t := time.NewTicker(s.rebuildInterval)
		defer t.Stop()
		tick = t.C
	}
	if s.store.View().HasMain() {
		s.tryRebuild(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.tryRebuild(ctx)
		case <-s.kick:
			s.tryRebuild(ctx)
		}
	}
}

func (s *Service) tryRebuild(ctx context.Context) {
	if !s.store.View().HasMain() {
		s.logger.Debug(ctx, "skipping zone rebuild; no main snapshot yet")
		return
	}
	// failures are logged and counted by the cache
	_, _ = s.cache.Rebuild(ctx)
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit validates b and queues it for ingestion. A full queue returns
// queue.ErrFull.
func (s *Service) Submit(ctx context.Context, b model.Batch) error { //nolint:gocritic // hugeParam: batches travel by value
	if !s.running() {
		return ErrNotStarted
	}
	b.Category = tags.Normalize(b.Category)
	if err := b.Validate(); err != nil {
		metrics.RecordBatchError()
		return err
	}
	if err := s.queue.Enqueue(ctx, b); err != nil {
		return fmt.Errorf("submit %s batch: %w", b.Category, err)
	}
	s.logger.Debug(ctx, "batch queued",
		logger.String("category", b.Category),
		logger.Int("placements", len(b.Placements)),
	)
	return nil
}

// ApplyNow stores b synchronously, bypassing the queue.
func (s *Service) ApplyNow(ctx context.Context, b model.Batch) error { //nolint:gocritic // hugeParam: batches travel by value
	if !s.running() {
		return ErrNotStarted
	}
	return s.store.Apply(ctx, b)
}

// Lookup returns the position of an item.
func (s *Service) Lookup(ctx context.Context, itemID string) (position.Result, error) {
	if !s.running() {
		return position.Result{}, ErrNotStarted
	}
	return s.positions.Lookup(ctx, itemID)
}

// Range returns the cached zone entries ranked within [start, end].
func (s *Service) Range(_ context.Context, start, end int) ([]model.ZoneEntry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.cache.Range(start, end), nil
}

// BestPositions returns an item's best position per category.
func (s *Service) BestPositions(ctx context.Context, itemID string) ([]model.BestPosition, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.BestPositions(ctx, itemID)
}

// PutItem upserts catalog metadata.
func (s *Service) PutItem(ctx context.Context, item model.Item) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.store.PutItem(ctx, item)
}

// RebuildNow rebuilds the zone immediately. It returns
// zone.ErrRebuildInProgress when a rebuild is already running.
func (s *Service) RebuildNow(ctx context.Context) (zone.Report, error) {
	if !s.running() {
		return zone.Report{}, ErrNotStarted
	}
	return s.cache.Rebuild(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"rebuildInterval": s.rebuildInterval.String(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len()
	stats["queueLength"] = queueLen
	stats["snapshots"] = s.store.Count(ctx)
	stats["zoneEntries"] = s.cache.Len()
	if gen := s.cache.Generation(); gen.ID != "" {
		stats["generation"] = gen.ID
		stats["generationBuiltAt"] = gen.BuiltAt
	}
	if v := s.store.View(); v.HasMain() {
		stats["snapshotAt"] = v.CapturedAt()
		stats["categories"] = len(v.Categories())
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}
