package model

import "errors"

// Sentinel kinds shared by the ranking engine. Callers match with errors.Is.
var (
	// ErrNoRecentData means no main snapshot exists at all.
	ErrNoRecentData = errors.New("no recent leaderboard data")
	// ErrNotRankable means the item never appeared on any leaderboard.
	ErrNotRankable = errors.New("item not yet ranked")
	// ErrPartialCategoryData marks a category served from an older snapshot
	// than the newest batch. It is recovered locally and never returned to users.
	ErrPartialCategoryData = errors.New("partial category data")
	// ErrCacheRebuild wraps any failure that aborted a zone cache rebuild.
	ErrCacheRebuild = errors.New("zone cache rebuild failed")
	ErrInvalidBatch = errors.New("invalid leaderboard batch")
	ErrUnknownItem  = errors.New("unknown item")
)
