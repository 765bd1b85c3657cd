package model

import "time"

// Move classifies a rank change between two observations of the same item.
type Move string

// Movement kinds.
const (
	MoveUp   Move = "up"
	MoveDown Move = "down"
	MoveSame Move = "same"
	MoveNew  Move = "new"
)

// Movement is the movement metadata carried by a zone entry. LastPosition
// and LastMoveAt describe the observation the last actual change was
// measured against; they are carried forward unchanged while the position
// stays the same.
type Movement struct {
	Move         Move      `json:"last_move"`
	LastPosition int       `json:"last_position,omitempty"`
	LastMoveAt   time.Time `json:"last_move_date"`
}

// ZoneEntry is one row of the competitive zone cache.
type ZoneEntry struct {
	ItemID    string    `json:"item_id"`
	Position  int       `json:"position"`
	Estimated bool      `json:"estimated"`
	Movement  Movement  `json:"movement"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Generation is one fully computed zone cache, ordered by position.
type Generation struct {
	ID         string      `json:"id"`
	BuiltAt    time.Time   `json:"built_at"`
	SnapshotAt time.Time   `json:"snapshot_at"`
	Entries    []ZoneEntry `json:"entries"`
}
