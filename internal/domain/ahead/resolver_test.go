package ahead_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nbunney/rrcompanion/internal/domain/ahead"
	"github.com/nbunney/rrcompanion/internal/domain/board"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type history map[string]bool

func (h history) Observed(_ context.Context, id string) bool { return h[id] }

var at = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func ranked(cat string, ids ...string) model.Batch {
	b := model.Batch{Category: cat, CapturedAt: at}
	for i, id := range ids {
		b.Placements = append(b.Placements, model.Placement{ItemID: id, Position: i + 1})
	}
	return b
}

func seq(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i+1)
	}
	return out
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	Convey("Given a main list of 50 items and Q 60th in mystery behind 59 unrelated items", t, func() {
		mystery := append(seq("x", 59), "Q")
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, seq("m", 50)...),
			"mystery":          ranked("mystery", mystery...),
		}, nil)
		r := ahead.NewResolver()

		res, err := r.Resolve(ctx, v, "Q", []string{"mystery"})

		Convey("Then the ahead-set holds main plus the 59 better mystery items", func() {
			So(err, ShouldBeNil)
			So(res.OnMain, ShouldBeFalse)
			So(res.Size(), ShouldEqual, 109)
			So(res.Rank, ShouldEqual, 110)
			So(res.Contains("Q"), ShouldBeFalse)
		})
	})

	Convey("Given a target on the main list", t, func() {
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, "a", "b", "c"),
		}, nil)

		res, err := ahead.NewResolver().Resolve(ctx, v, "c", nil)

		Convey("Then the rank is exact and only better main items are ahead", func() {
			So(err, ShouldBeNil)
			So(res.OnMain, ShouldBeTrue)
			So(res.Rank, ShouldEqual, 3)
			So(res.IDs(), ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given a relevant category the target is missing from", t, func() {
		// T is 3rd in fantasy behind f1,f2. f2 is 4th in action, so every item
		// better than 4th in action is pulled in, but nothing after it.
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, "m1"),
			"fantasy":          ranked("fantasy", "f1", "f2", "T"),
			"action":           ranked("action", "a1", "a2", "a3", "f2", "a5"),
			"horror":           ranked("horror", "h1", "h2"),
		}, nil)
		r := ahead.NewResolver()

		Convey("When action is relevant", func() {
			res, err := r.Resolve(ctx, v, "T", []string{"action", "horror"})

			Convey("Then items better than the worst ahead member join in one pass", func() {
				So(err, ShouldBeNil)
				So(res.IDs(), ShouldResemble, []string{"a1", "a2", "a3", "f1", "f2", "m1"})
				So(res.Rank, ShouldEqual, 56)
			})
		})

		Convey("When no relevant categories are known", func() {
			res, err := r.Resolve(ctx, v, "T", nil)

			Convey("Then only main and the target's own categories count", func() {
				So(err, ShouldBeNil)
				So(res.IDs(), ShouldResemble, []string{"f1", "f2", "m1"})
			})
		})
	})

	Convey("Given two missing categories where the later one grows the set", t, func() {
		// alpha is visited before beta. beta adds b1 which also sits in alpha,
		// but alpha is not revisited.
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, "m1"),
			"home":             ranked("home", "h1", "T"),
			"alpha":            ranked("alpha", "a1", "b1", "a3"),
			"beta":             ranked("beta", "b1", "h1"),
		}, nil)

		res, err := ahead.NewResolver().Resolve(ctx, v, "T", []string{"beta", "alpha"})

		Convey("Then the single pass does not re-expand alpha", func() {
			So(err, ShouldBeNil)
			So(res.Contains("b1"), ShouldBeTrue)
			So(res.Contains("a1"), ShouldBeFalse)
			So(res.Size(), ShouldEqual, 3)
		})
	})

	Convey("Given an item that never appeared anywhere", t, func() {
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, "m1"),
		}, nil)

		Convey("When no history knows it", func() {
			_, err := ahead.NewResolver().Resolve(ctx, v, "ghost", nil)
			So(errors.Is(err, model.ErrNotRankable), ShouldBeTrue)
		})

		Convey("When history observed it earlier", func() {
			r := ahead.NewResolver(ahead.WithHistory(history{"ghost": true}))
			res, err := r.Resolve(ctx, v, "ghost", nil)

			Convey("Then it is ranked behind the reserved main slots", func() {
				So(err, ShouldBeNil)
				So(res.Rank, ShouldEqual, model.MaxPosition+1)
			})
		})
	})

	Convey("Given a main list shorter than the board", t, func() {
		v := board.Build(map[string]model.Batch{
			model.MainCategory: ranked(model.MainCategory, seq("m", 10)...),
			"litrpg":           ranked("litrpg", "a", "t"),
		}, nil)

		res, err := ahead.NewResolver().Resolve(ctx, v, "t", nil)

		Convey("Then the rank still starts below the top 50", func() {
			So(err, ShouldBeNil)
			So(res.Size(), ShouldEqual, 11)
			So(res.Rank, ShouldEqual, 52)
		})
	})

	Convey("Given no main snapshot", t, func() {
		v := board.Build(map[string]model.Batch{"fantasy": ranked("fantasy", "a")}, nil)

		_, err := ahead.NewResolver().Resolve(ctx, v, "a", nil)

		Convey("Then it fails with no recent data before anything else", func() {
			So(errors.Is(err, model.ErrNoRecentData), ShouldBeTrue)
		})
	})
}
