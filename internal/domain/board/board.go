// Package board holds the read model the ranking engine works on: the latest
// leaderboard of every category, frozen at the moment it was published.
//
// A View is immutable once built. Writers build a new View and publish it;
// readers may keep using an older View for as long as they like.
package board

import (
	"sort"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// List is one category leaderboard ordered from best to worst position.
type List struct {
	Category   string
	CapturedAt time.Time

	items     []string
	positions map[string]int
}

// NewList builds a List from a batch. Placements are ordered by position.
func NewList(b model.Batch) *List {
	placements := make([]model.Placement, len(b.Placements))
	copy(placements, b.Placements)
	sort.Slice(placements, func(i, j int) bool {
		if placements[i].Position != placements[j].Position {
			return placements[i].Position < placements[j].Position
		}
		return placements[i].ItemID < placements[j].ItemID
	})

	l := &List{
		Category:   b.Category,
		CapturedAt: b.CapturedAt,
		items:      make([]string, 0, len(placements)),
		positions:  make(map[string]int, len(placements)),
	}
	for _, p := range placements {
		if _, dup := l.positions[p.ItemID]; dup {
			continue
		}
		l.items = append(l.items, p.ItemID)
		l.positions[p.ItemID] = p.Position
	}
	return l
}

// Position returns id's position in the list.
func (l *List) Position(id string) (int, bool) {
	if l == nil {
		return 0, false
	}
	p, ok := l.positions[id]
	return p, ok
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns the item ids ordered by position. The slice must not be modified.
func (l *List) Items() []string {
	if l == nil {
		return nil
	}
	return l.items
}

// At returns the item at 0-based index i of the ordered list.
func (l *List) At(i int) string {
	return l.items[i]
}

// BetterThan returns the items whose position is strictly smaller than pos.
func (l *List) BetterThan(pos int) []string {
	if l == nil {
		return nil
	}
	n := sort.Search(len(l.items), func(i int) bool {
		return l.positions[l.items[i]] >= pos
	})
	return l.items[:n]
}

// View is the set of latest lists the engine ranks against.
type View struct {
	capturedAt time.Time
	main       *List
	prevMain   *List
	lists      map[string]*List
	names      []string
	partial    []string
	byItem     map[string][]string
}

// Build assembles a View from each category's latest batch. previousMain is
// the main batch captured before latest[model.MainCategory], if any.
// Categories whose latest batch is older than the newest capture time are
// still used and reported by Partial.
func Build(latest map[string]model.Batch, previousMain *model.Batch) *View {
	v := &View{
		lists:  make(map[string]*List, len(latest)),
		byItem: make(map[string][]string),
	}
	for name, b := range latest {
		if b.CapturedAt.After(v.capturedAt) {
			v.capturedAt = b.CapturedAt
		}
		l := NewList(b)
		l.Category = name
		if name == model.MainCategory {
			v.main = l
			continue
		}
		v.lists[name] = l
		v.names = append(v.names, name)
	}
	sort.Strings(v.names)

	if previousMain != nil {
		v.prevMain = NewList(*previousMain)
	}

	for _, name := range v.names {
		l := v.lists[name]
		if l.CapturedAt.Before(v.capturedAt) {
			v.partial = append(v.partial, name)
		}
		for _, id := range l.items {
			v.byItem[id] = append(v.byItem[id], name)
		}
	}
	if v.main != nil && v.main.CapturedAt.Before(v.capturedAt) {
		v.partial = append([]string{model.MainCategory}, v.partial...)
	}
	return v
}

// CapturedAt is the newest capture time across all categories.
func (v *View) CapturedAt() time.Time { return v.capturedAt }

// HasMain reports whether a main snapshot exists.
func (v *View) HasMain() bool { return v != nil && v.main != nil && v.main.Len() > 0 }

// Main returns the latest main list, or nil.
func (v *View) Main() *List { return v.main }

// PreviousMain returns the main list captured before Main, or nil.
func (v *View) PreviousMain() *List { return v.prevMain }

// MainRank returns id's exact rank on the latest main list.
func (v *View) MainRank(id string) (int, bool) { return v.main.Position(id) }

// List returns the latest list of a non-main category, or nil.
func (v *View) List(category string) *List { return v.lists[category] }

// Categories returns the sorted non-main category names.
func (v *View) Categories() []string { return v.names }

// Partial returns categories served from an older snapshot than CapturedAt.
func (v *View) Partial() []string { return v.partial }

// CategoriesOf returns the sorted non-main categories id appears in.
func (v *View) CategoriesOf(id string) []string { return v.byItem[id] }

// Empty is a View with no data; every lookup against it fails with ErrNoRecentData.
func Empty() *View {
	return &View{lists: map[string]*List{}, byItem: map[string][]string{}}
}
