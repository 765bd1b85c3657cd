package model

import (
	"fmt"
	"strings"
	"time"
)

// Placement is a single row of a category leaderboard.
type Placement struct {
	ItemID   string `json:"item_id" yaml:"item_id"`
	Position int    `json:"position" yaml:"position"`
}

// Batch is one captured category leaderboard: every placement shares the
// same category and capture time.
type Batch struct {
	Category   string      `json:"category" yaml:"category"`
	CapturedAt time.Time   `json:"captured_at" yaml:"captured_at"`
	Placements []Placement `json:"placements" yaml:"placements"`
}

// Key identifies a batch by (category, captured_at). Applying a batch with
// an existing key replaces the stored one.
func (b Batch) Key() string {
	return b.Category + "@" + b.CapturedAt.UTC().Format(time.RFC3339Nano)
}

// Validate enforces the per-snapshot invariants: positions within
// [1..MaxPosition], unique positions and unique item ids.
func (b Batch) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidBatch)
	}
	if b.CapturedAt.IsZero() {
		return fmt.Errorf("%w: missing captured_at", ErrInvalidBatch)
	}
	if len(b.Placements) > MaxPosition {
		return fmt.Errorf("%w: %d placements exceed %d", ErrInvalidBatch, len(b.Placements), MaxPosition)
	}
	seenPos := make(map[int]struct{}, len(b.Placements))
	seenID := make(map[string]struct{}, len(b.Placements))
	for _, p := range b.Placements {
		if strings.TrimSpace(p.ItemID) == "" {
			return fmt.Errorf("%w: empty item id", ErrInvalidBatch)
		}
		if p.Position < 1 || p.Position > MaxPosition {
			return fmt.Errorf("%w: position %d out of range for %s", ErrInvalidBatch, p.Position, p.ItemID)
		}
		if _, dup := seenPos[p.Position]; dup {
			return fmt.Errorf("%w: duplicate position %d", ErrInvalidBatch, p.Position)
		}
		if _, dup := seenID[p.ItemID]; dup {
			return fmt.Errorf("%w: duplicate item %s", ErrInvalidBatch, p.ItemID)
		}
		seenPos[p.Position] = struct{}{}
		seenID[p.ItemID] = struct{}{}
	}
	return nil
}

// BestPosition is the best position an item ever reached in a category.
// Position never increases once recorded.
type BestPosition struct {
	ItemID     string    `json:"item_id"`
	Category   string    `json:"category"`
	Position   int       `json:"position"`
	AchievedAt time.Time `json:"achieved_at"`
}
