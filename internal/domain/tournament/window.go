package tournament

import (
	"math"
	"sort"

	"github.com/nbunney/rrcompanion/internal/domain/board"
)

// Keep selects which end of the candidate order Window retains.
type Keep int

const (
	// KeepHead retains the best-placed candidates.
	KeepHead Keep = iota
	// KeepTail retains the worst-placed candidates.
	KeepTail
)

// Window cuts candidates down to at most n ids, ordered by best category
// position and then id. Candidates on no list sort last.
func Window(v *board.View, candidates []string, n int, keep Keep) []string {
	if n <= 0 {
		return nil
	}
	type cand struct {
		id   string
		best int
	}
	seen := make(map[string]struct{}, len(candidates))
	all := make([]cand, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		best := math.MaxInt
		for _, cat := range v.CategoriesOf(id) {
			if p, ok := v.List(cat).Position(id); ok && p < best {
				best = p
			}
		}
		all = append(all, cand{id: id, best: best})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].best != all[j].best {
			return all[i].best < all[j].best
		}
		return all[i].id < all[j].id
	})
	if len(all) > n {
		if keep == KeepTail {
			all = all[len(all)-n:]
		} else {
			all = all[:n]
		}
	}
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.id
	}
	return out
}
