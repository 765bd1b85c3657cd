package zonestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"

	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/pkg/logger"
	"github.com/nbunney/rrcompanion/pkg/metrics"
)

// Key layout:
//
//	zone/meta           generation header
//	zone/e/<item id>    one ZoneEntry per item
var (
	metaKey     = []byte("zone/meta")
	entryPrefix = []byte("zone/e/")
)

// Config configures the badger-backed store.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path     string
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
	// MaxRetryElapsed bounds retries of a conflicting commit.
	MaxRetryElapsed time.Duration
}

// DefaultConfig returns the on-disk configuration for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true, MaxRetryElapsed: 5 * time.Second}
}

// InMemoryConfig returns a configuration that keeps everything in memory.
func InMemoryConfig() Config {
	return Config{InMemory: true, MaxRetryElapsed: time.Second}
}

type meta struct {
	ID         string    `json:"id"`
	BuiltAt    time.Time `json:"built_at"`
	SnapshotAt time.Time `json:"snapshot_at"`
	Count      int       `json:"count"`
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a Store backed by a badger database.
type Badger struct {
	db       *badger.DB
	maxRetry time.Duration
	logger   logger.Logger
}

var _ Store = (*Badger)(nil)

// OpenBadger opens (or creates) the store described by cfg.
func OpenBadger(cfg Config) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrPathRequired
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create zone store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open zone store: %w", err)
	}
	if cfg.MaxRetryElapsed <= 0 {
		cfg.MaxRetryElapsed = time.Second
	}
	return &Badger{db: db, maxRetry: cfg.MaxRetryElapsed, logger: logger.Get().Named("zonestore")}, nil
}

// Close implements Store.Close.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Load implements Store.Load.
func (b *Badger) Load(ctx context.Context) (*model.Generation, error) {
	var gen *model.Generation
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoGeneration
		}
		if err != nil {
			return err
		}
		var m meta
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
			return fmt.Errorf("decode meta: %w", err)
		}

		gen = &model.Generation{ID: m.ID, BuiltAt: m.BuiltAt, SnapshotAt: m.SnapshotAt}
		gen.Entries = make([]model.ZoneEntry, 0, m.Count)

		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: entryPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e model.ZoneEntry
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return fmt.Errorf("decode entry %s: %w", it.Item().Key(), err)
			}
			gen.Entries = append(gen.Entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(gen.Entries, func(i, j int) bool { return gen.Entries[i].Position < gen.Entries[j].Position })
	return gen, nil
}

// Replace implements Store.Replace. The upserts, deletes and header land in
// one transaction; a transaction conflict is retried with backoff.
func (b *Badger) Replace(ctx context.Context, gen *model.Generation) error {
	if gen == nil {
		return ErrNilGeneration
	}
	header, err := json.Marshal(meta{ID: gen.ID, BuiltAt: gen.BuiltAt, SnapshotAt: gen.SnapshotAt, Count: len(gen.Entries)})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	values := make(map[string][]byte, len(gen.Entries))
	for _, e := range gen.Entries {
		v, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ItemID, err)
		}
		values[e.ItemID] = v
	}

	operation := func() error {
		err := b.db.Update(func(txn *badger.Txn) error {
			return replaceTxn(txn, header, values)
		})
		if err == nil || errors.Is(err, badger.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = b.maxRetry

	notify := func(err error, next time.Duration) {
		metrics.RecordZoneCommitRetry()
		b.logger.Warn(ctx, "zone commit conflicted, retrying",
			logger.Error(err),
			logger.Duration("next_retry_in", next),
		)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("commit generation %s: %w", gen.ID, err)
	}
	return nil
}

func replaceTxn(txn *badger.Txn, header []byte, values map[string][]byte) error {
	var stale [][]byte
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false, Prefix: entryPrefix})
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		if _, ok := values[string(key[len(entryPrefix):])]; !ok {
			stale = append(stale, key)
		}
	}
	it.Close()

	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	for id, v := range values {
		if err := txn.Set(entryKey(id), v); err != nil {
			return err
		}
	}
	return txn.Set(metaKey, header)
}

func entryKey(id string) []byte {
	k := make([]byte, 0, len(entryPrefix)+len(id))
	k = append(k, entryPrefix...)
	return append(k, id...)
}
