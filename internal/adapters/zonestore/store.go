// Package zonestore persists committed competitive zone generations so a
// restarted process can serve the last good zone before its first rebuild.
package zonestore

import (
	"context"
	"sync/atomic"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// Store holds at most one committed generation.
type Store interface {
	// Load returns the committed generation, or ErrNoGeneration.
	Load(ctx context.Context) (*model.Generation, error)
	// Replace commits gen atomically: entries missing from gen are removed.
	Replace(ctx context.Context, gen *model.Generation) error
	Close() error
}

// Memory is a Store that lives only as long as the process.
type Memory struct {
	gen atomic.Pointer[model.Generation]
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory { return &Memory{} }

// Load implements Store.Load.
func (m *Memory) Load(_ context.Context) (*model.Generation, error) {
	g := m.gen.Load()
	if g == nil {
		return nil, ErrNoGeneration
	}
	return clone(g), nil
}

// Replace implements Store.Replace.
func (m *Memory) Replace(ctx context.Context, gen *model.Generation) error {
	if gen == nil {
		return ErrNilGeneration
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.gen.Store(clone(gen))
	return nil
}

// Close implements Store.Close.
func (m *Memory) Close() error { return nil }

func clone(g *model.Generation) *model.Generation {
	c := *g
	c.Entries = append([]model.ZoneEntry(nil), g.Entries...)
	return &c
}
