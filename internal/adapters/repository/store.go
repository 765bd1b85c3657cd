// Package repository holds the leaderboard snapshot store and the item catalog.
package repository

import (
	"context"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// Store provides read/write access to the snapshot state.
type Store interface {
	// Apply validates and stores a batch, then publishes a fresh View.
	// Re-applying a batch with the same (category, captured_at) replaces it.
	Apply(ctx context.Context, b model.Batch) error

	// View returns the latest published View. It never returns nil.
	View() *board.View

	// Observed reports whether the item ever appeared on any leaderboard.
	Observed(ctx context.Context, itemID string) bool

	// UpdateBest records position as the item's best in category if it is
	// strictly better than the stored one. Returns true when it updated.
	UpdateBest(ctx context.Context, itemID, category string, position int, at time.Time) (bool, error)

	// BestPositions returns the item's best positions ordered by category.
	// Returns ErrNotFound if the item has none.
	BestPositions(ctx context.Context, itemID string) ([]model.BestPosition, error)

	// PutItem upserts catalog metadata.
	PutItem(ctx context.Context, item model.Item) error

	// Item returns catalog metadata or model.ErrUnknownItem.
	Item(ctx context.Context, itemID string) (model.Item, error)

	// Count returns the number of stored snapshot batches.
	Count(ctx context.Context) int
}
