package tournament_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/domain/tournament"
	"github.com/nbunney/rrcompanion/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var at = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func list(cat string, ids ...string) model.Batch {
	b := model.Batch{Category: cat, CapturedAt: at}
	for i, id := range ids {
		b.Placements = append(b.Placements, model.Placement{ItemID: id, Position: i + 1})
	}
	return b
}

func order(rs []tournament.Ranked) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ItemID
	}
	return out
}

func TestRank(t *testing.T) {
	ctx := context.Background()

	Convey("Given candidates spread over overlapping categories", t, func() {
		// fantasy: a b c   action: c d   romance: e
		v := board.Build(map[string]model.Batch{
			model.MainCategory: list(model.MainCategory, "m1"),
			"fantasy":          list("fantasy", "a", "b", "c"),
			"action":           list("action", "c", "d"),
			"romance":          list("romance", "e"),
		}, nil)
		r := tournament.NewRanker()

		out, err := r.Rank(ctx, v, []string{"d", "c", "b", "a", "e", "c"})

		Convey("Then beat counts follow OR semantics over shared categories", func() {
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 5)
			beaten := map[string]int{}
			for _, x := range out {
				beaten[x.ItemID] = x.BeatenBy
			}
			So(beaten, ShouldResemble, map[string]int{"a": 0, "b": 1, "c": 2, "d": 1, "e": 0})
		})

		Convey("Then ties break on best position then id, and ranks start at 51", func() {
			So(order(out), ShouldResemble, []string{"a", "e", "b", "d", "c"})
			So(out[0].Rank, ShouldEqual, 51)
			So(out[4].Rank, ShouldEqual, 55)
		})

		Convey("Then identical input yields identical output", func() {
			again, err := r.Rank(ctx, v, []string{"a", "b", "c", "d", "e"})
			So(err, ShouldBeNil)
			So(again, ShouldResemble, out)
		})
	})

	Convey("Given a candidate on no category list", t, func() {
		v := board.Build(map[string]model.Batch{
			model.MainCategory: list(model.MainCategory, "m1"),
			"fantasy":          list("fantasy", "a", "b"),
		}, nil)

		out, err := tournament.NewRanker(tournament.WithStartRank(10)).Rank(ctx, v, []string{"ghost", "b", "a"})

		Convey("Then it sinks to the bottom without error", func() {
			So(err, ShouldBeNil)
			So(order(out), ShouldResemble, []string{"a", "b", "ghost"})
			So(out[2].BeatenBy, ShouldEqual, 3)
			So(out[2].BestPosition, ShouldEqual, math.MaxInt)
			So(out[2].Rank, ShouldEqual, 12)
		})
	})

	Convey("Given more candidates than the cap", t, func() {
		r := tournament.NewRanker(tournament.WithMaxCandidates(2))

		_, err := r.Rank(ctx, board.Empty(), []string{"a", "b", "c"})

		So(errors.Is(err, tournament.ErrTooManyCandidates), ShouldBeTrue)
	})

	Convey("Given a large field", t, func() {
		batches := map[string]model.Batch{model.MainCategory: list(model.MainCategory, "m1")}
		var candidates []string
		for c := 0; c < 8; c++ {
			ids := make([]string, 0, model.MaxPosition)
			for p := 0; p < model.MaxPosition; p++ {
				// stride so items overlap across categories
				ids = append(ids, fmt.Sprintf("i%03d", (c*17+p*7)%300))
			}
			cat := fmt.Sprintf("cat%d", c)
			batches[cat] = list(cat, dedupe(ids)...)
		}
		for i := 0; i < 300; i++ {
			candidates = append(candidates, fmt.Sprintf("i%03d", i))
		}
		v := board.Build(batches, nil)

		seq := tournament.NewRanker(tournament.WithMaxCandidates(1000))
		par := tournament.NewRanker(
			tournament.WithMaxCandidates(1000),
			tournament.WithWorkers(4),
			tournament.WithParallelThreshold(16),
		)
		defer par.Close()

		a, errA := seq.Rank(ctx, v, candidates)
		b, errB := par.Rank(ctx, v, candidates)

		Convey("Then the pooled computation matches the sequential one", func() {
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(b, ShouldResemble, a)
		})
	})

	Convey("Given a closed ranker", t, func() {
		r := tournament.NewRanker(tournament.WithWorkers(2))
		r.Close()

		_, err := r.Rank(ctx, board.Empty(), []string{"a"})

		So(errors.Is(err, tournament.ErrRankerClosed), ShouldBeTrue)
	})
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func TestWindow(t *testing.T) {
	Convey("Given candidates with distinct best positions", t, func() {
		v := board.Build(map[string]model.Batch{
			"fantasy": list("fantasy", "a", "b", "c"),
			"action":  list("action", "x", "c"),
		}, nil)
		candidates := []string{"ghost", "c", "b", "a", "x", "a"}

		Convey("Then the head keeps the best placed", func() {
			So(tournament.Window(v, candidates, 3, tournament.KeepHead), ShouldResemble, []string{"a", "x", "b"})
		})

		Convey("Then the tail keeps the worst placed, unlisted last", func() {
			So(tournament.Window(v, candidates, 2, tournament.KeepTail), ShouldResemble, []string{"c", "ghost"})
		})

		Convey("Then a window wider than the field keeps everything", func() {
			So(tournament.Window(v, candidates, 10, tournament.KeepHead), ShouldHaveLength, 5)
		})
	})
}
