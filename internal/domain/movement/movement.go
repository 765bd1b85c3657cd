// Package movement classifies how an item's position changed between two
// observations. The same rules apply to exact main-list positions and to
// estimated competitive-zone positions.
package movement

import (
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// Observation is a previously seen position. A zero Position means the item
// was not observed.
type Observation struct {
	Position int
	At       time.Time
}

// Valid reports whether o can serve as a baseline at now.
func (o Observation) Valid(now time.Time, lookback time.Duration) bool {
	if o.Position <= 0 || o.At.IsZero() {
		return false
	}
	if lookback > 0 && now.Sub(o.At) > lookback {
		return false
	}
	return true
}

// Classify compares current against previous. Lower numbers are better, so
// a smaller current position is "up". Without a valid previous observation
// inside the lookback window the result is "new".
func Classify(current int, previous Observation, now time.Time, lookback time.Duration) model.Move {
	if !previous.Valid(now, lookback) {
		return model.MoveNew
	}
	switch {
	case current < previous.Position:
		return model.MoveUp
	case current > previous.Position:
		return model.MoveDown
	default:
		return model.MoveSame
	}
}

// Advance produces the movement metadata for an item now at current, given
// the movement it carried before and the observation to compare against.
//
// A change records the previous position and now as the new baseline. An
// unchanged position reads "same" but keeps LastPosition and LastMoveAt from
// prev, so metadata only resets when the rank actually moves.
func Advance(prev model.Movement, current int, previous Observation, now time.Time, lookback time.Duration) model.Movement {
	switch mv := Classify(current, previous, now, lookback); mv {
	case model.MoveNew:
		return model.Movement{Move: model.MoveNew, LastMoveAt: now}
	case model.MoveSame:
		out := prev
		out.Move = model.MoveSame
		if out.LastMoveAt.IsZero() {
			out.LastMoveAt = previous.At
		}
		return out
	default:
		return model.Movement{Move: mv, LastPosition: previous.Position, LastMoveAt: now}
	}
}
