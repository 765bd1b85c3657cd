package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	service "github.com/nbunney/rrcompanion/internal/app"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/position"
	"github.com/nbunney/rrcompanion/internal/zone"
	. "github.com/smartystreets/goconvey/convey"
)

var captured = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func board(cat string, at time.Time, ids ...string) model.Batch {
	b := model.Batch{Category: cat, CapturedAt: at}
	for i, id := range ids {
		b.Placements = append(b.Placements, model.Placement{ItemID: id, Position: i + 1})
	}
	return b
}

func mainIDs() []string {
	ids := make([]string, model.MaxPosition)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%02d", i+1)
	}
	return ids
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started in-memory service", t, func() {
		svc := service.New(
			service.WithInMemory(true),
			service.WithWorkerCount(1),
			service.WithRebuildInterval(0),
			service.WithReference("fantasy", 4),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When batches are submitted through the queue", func() {
			So(svc.Submit(ctx, board("Fantasy", captured, "a", "b", "c", "d")), ShouldBeNil)
			So(svc.Submit(ctx, board(model.MainCategory, captured, mainIDs()...)), ShouldBeNil)

			Convey("Then the first main list triggers a rebuild", func() {
				So(eventually(func() bool {
					entries, _ := svc.Range(ctx, 51, 60)
					return len(entries) == 4
				}), ShouldBeTrue)

				res, err := svc.Lookup(ctx, "c")
				So(err, ShouldBeNil)
				So(res.Source, ShouldEqual, position.SourceCache)
				So(res.Rank, ShouldEqual, 53)
			})
		})

		Convey("When batches are applied directly and the zone is rebuilt", func() {
			So(svc.ApplyNow(ctx, board(model.MainCategory, captured, mainIDs()...)), ShouldBeNil)
			So(svc.ApplyNow(ctx, board("fantasy", captured, "a", "b", "c", "d")), ShouldBeNil)
			So(svc.ApplyNow(ctx, board("poetry", captured, "p1", "p2", "c")), ShouldBeNil)
			So(svc.PutItem(ctx, model.Item{ID: "z", Tags: []string{"Poetry"}}), ShouldBeNil)

			rep, err := svc.RebuildNow(ctx)
			So(err, ShouldBeNil)

			Convey("Then main positions are exact", func() {
				So(rep.ReferenceItem, ShouldEqual, "d")
				res, err := svc.Lookup(ctx, "m07")
				So(err, ShouldBeNil)
				So(res.Kind, ShouldEqual, position.Exact)
				So(res.Rank, ShouldEqual, 7)
			})

			Convey("Then zone items are served from the cache with context", func() {
				res, err := svc.Lookup(ctx, "b")
				So(err, ShouldBeNil)
				So(res.Source, ShouldEqual, position.SourceCache)
				So(res.Rank, ShouldBeGreaterThan, model.MaxPosition)
				So(res.AheadCount, ShouldEqual, res.Rank-1)
				So(len(res.ContextItems), ShouldBeGreaterThan, 1)
			})

			Convey("Then items outside the zone are computed", func() {
				res, err := svc.Lookup(ctx, "p2")
				So(err, ShouldBeNil)
				So(res.Source, ShouldEqual, position.SourceComputed)
				So(res.Rank, ShouldBeGreaterThan, model.MaxPosition)
			})

			Convey("Then unseen items are not rankable", func() {
				_, err := svc.Lookup(ctx, "z")
				So(errors.Is(err, model.ErrNotRankable), ShouldBeTrue)
			})

			Convey("Then best positions are tracked per category", func() {
				best, err := svc.BestPositions(ctx, "c")
				So(err, ShouldBeNil)
				So(best, ShouldHaveLength, 2)
				So(best[0].Category, ShouldEqual, "fantasy")
				So(best[0].Position, ShouldEqual, 3)
				So(best[1].Category, ShouldEqual, "poetry")
			})

			Convey("Then stats describe the committed generation", func() {
				stats := svc.GetStats()
				So(stats["snapshots"], ShouldEqual, 3)
				So(stats["zoneEntries"], ShouldEqual, rep.Entries)
				So(stats["generation"], ShouldEqual, rep.GenerationID)
			})
		})
	})

	Convey("Given a service persisting zone generations on disk", t, func() {
		dir := t.TempDir()
		ctx := context.Background()
		opts := []service.Option{
			service.WithDataDir(dir),
			service.WithRebuildInterval(0),
			service.WithReference("fantasy", 4),
		}

		first := service.New(opts...)
		So(first.Start(ctx), ShouldBeNil)
		So(first.ApplyNow(ctx, board(model.MainCategory, captured, mainIDs()...)), ShouldBeNil)
		So(first.ApplyNow(ctx, board("fantasy", captured, "a", "b", "c", "d")), ShouldBeNil)
		rep, err := first.RebuildNow(ctx)
		So(err, ShouldBeNil)
		first.Stop()

		Convey("When a new process starts on the same directory", func() {
			second := service.New(opts...)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then the last generation is served before any ingest", func() {
				So(second.GetStats()["generation"], ShouldEqual, rep.GenerationID)
				res, err := second.Lookup(ctx, "c")
				So(err, ShouldBeNil)
				So(res.Source, ShouldEqual, position.SourceCache)
				So(res.Rank, ShouldEqual, 53)
			})

			Convey("Then a rebuild without a main snapshot fails and keeps it", func() {
				_, err := second.RebuildNow(ctx)
				So(errors.Is(err, model.ErrCacheRebuild), ShouldBeTrue)
				So(errors.Is(err, zone.ErrRebuildInProgress), ShouldBeFalse)
				So(second.GetStats()["zoneEntries"], ShouldEqual, rep.Entries)
			})
		})
	})
}
