package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nbunney/rrcompanion/internal/adapters/http/api"
	"github.com/nbunney/rrcompanion/internal/adapters/mq/queue"
	"github.com/nbunney/rrcompanion/internal/adapters/repository"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/position"
	"github.com/nbunney/rrcompanion/internal/zone"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	mu         sync.Mutex
	submitted  []model.Batch
	items      map[string]model.Item
	submitErr  error
	lookup     map[string]position.Result
	lookupErr  error
	zone       []model.ZoneEntry
	rangeArgs  [2]int
	best       map[string][]model.BestPosition
	rebuildErr error
}

func (m *mockDependencies) Submit(_ context.Context, b model.Batch) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, b)
	return nil
}

func (m *mockDependencies) PutItem(_ context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]model.Item)
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockDependencies) Lookup(_ context.Context, id string) (position.Result, error) {
	if m.lookupErr != nil {
		return position.Result{}, fmt.Errorf("lookup %s: %w", id, m.lookupErr)
	}
	res, ok := m.lookup[id]
	if !ok {
		return position.Result{}, fmt.Errorf("lookup %s: %w", id, model.ErrNotRankable)
	}
	return res, nil
}

func (m *mockDependencies) Range(_ context.Context, start, end int) ([]model.ZoneEntry, error) {
	m.rangeArgs = [2]int{start, end}
	var out []model.ZoneEntry
	for _, e := range m.zone {
		if e.Position >= start && e.Position <= end {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockDependencies) BestPositions(_ context.Context, id string) ([]model.BestPosition, error) {
	best, ok := m.best[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, repository.ErrNotFound)
	}
	return best, nil
}

func (m *mockDependencies) RebuildNow(context.Context) (zone.Report, error) {
	if m.rebuildErr != nil {
		return zone.Report{}, m.rebuildErr
	}
	return zone.Report{GenerationID: "g1", Entries: 53, Estimated: 3}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

const validBatch = `{"category":"fantasy","captured_at":"2026-10-17T12:00:00Z","placements":[{"item_id":"a","position":1},{"item_id":"b","position":2}]}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Then health answers ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Then stats are served from the provider", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then metrics are exposed", func() {
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown routes are not found", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are rejected", func() {
			w := do(mux, http.MethodGet, "/snapshots", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSnapshots(t *testing.T) {
	Convey("Given the snapshots endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a valid batch is posted", func() {
			w := do(mux, http.MethodPost, "/snapshots", validBatch)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, "accepted")
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].Category, ShouldEqual, "fantasy")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/snapshots", "{")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, http.MethodPost, "/snapshots", `{"category":"fantasy","bogus":1}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the batch is invalid", func() {
			w := do(mux, http.MethodPost, "/snapshots", `{"category":"","placements":[]}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("submit fantasy batch: %w", queue.ErrFull)
			w := do(mux, http.MethodPost, "/snapshots", validBatch)

			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")
		})

		Convey("When the queue is closed", func() {
			deps.submitErr = queue.ErrClosed
			w := do(mux, http.MethodPost, "/snapshots", validBatch)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "unavailable")
		})
	})
}

func TestItems(t *testing.T) {
	Convey("Given the items endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When an item is put", func() {
			w := do(mux, http.MethodPut, "/items/42", `{"id":"ignored","title":"Dragon Path","tags":["Fantasy","LitRPG"]}`)

			Convey("Then the path id is stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				item, ok := deps.items["42"]
				So(ok, ShouldBeTrue)
				So(item.Title, ShouldEqual, "Dragon Path")
				So(item.Tags, ShouldResemble, []string{"Fantasy", "LitRPG"})
			})
		})

		Convey("When the body is broken", func() {
			w := do(mux, http.MethodPut, "/items/42", `nope`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPosition(t *testing.T) {
	Convey("Given the position endpoint", t, func() {
		deps := &mockDependencies{lookup: map[string]position.Result{
			"c": {ItemID: "c", Kind: position.Estimated, Rank: 53, AheadCount: 52, ToClimb: 4, Source: position.SourceCache},
		}}
		mux := newMux(deps)

		Convey("When a ranked item is requested", func() {
			w := do(mux, http.MethodGet, "/position/c", "")

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res position.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Rank, ShouldEqual, 53)
				So(res.Kind, ShouldEqual, position.Estimated)
				So(res.ToClimb, ShouldEqual, 4)
			})
		})

		Convey("When an unranked item is requested", func() {
			w := do(mux, http.MethodGet, "/position/nobody", "")

			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_ranked")
		})

		Convey("When nothing has been ingested", func() {
			deps.lookupErr = model.ErrNoRecentData
			w := do(mux, http.MethodGet, "/position/c", "")

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "no_data")
		})

		Convey("When the lookup fails unexpectedly", func() {
			deps.lookupErr = errors.New("boom")
			w := do(mux, http.MethodGet, "/position/c", "")

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorCode(w), ShouldEqual, "internal_error")
		})
	})
}

func TestZone(t *testing.T) {
	Convey("Given the zone endpoint", t, func() {
		deps := &mockDependencies{zone: []model.ZoneEntry{
			{ItemID: "m50", Position: 50},
			{ItemID: "a", Position: 51, Estimated: true},
			{ItemID: "b", Position: 52, Estimated: true},
		}}
		mux := newMux(deps)

		Convey("When no bounds are given", func() {
			w := do(mux, http.MethodGet, "/zone", "")

			Convey("Then the first hundred ranks are read", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.rangeArgs, ShouldResemble, [2]int{1, 100})
				var entries []model.ZoneEntry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 3)
			})
		})

		Convey("When a window is given", func() {
			w := do(mux, http.MethodGet, "/zone?start=51&end=51", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []model.ZoneEntry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].ItemID, ShouldEqual, "a")
		})

		Convey("When the window is empty", func() {
			w := do(mux, http.MethodGet, "/zone?start=200&end=210", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("When bounds are malformed", func() {
			So(do(mux, http.MethodGet, "/zone?start=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/zone?start=x", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/zone?start=10&end=5", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the window is too wide", func() {
			w := do(mux, http.MethodGet, "/zone?start=1&end=5000", "")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})
	})
}

func TestBest(t *testing.T) {
	Convey("Given the best-position endpoint", t, func() {
		deps := &mockDependencies{best: map[string][]model.BestPosition{
			"c": {{ItemID: "c", Category: "fantasy", Position: 3}},
		}}
		mux := newMux(deps)

		Convey("Then recorded bests are returned", func() {
			w := do(mux, http.MethodGet, "/best/c", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "fantasy")
		})

		Convey("Then unknown items are not found", func() {
			w := do(mux, http.MethodGet, "/best/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})
	})
}

func TestRebuild(t *testing.T) {
	Convey("Given the rebuild endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a rebuild succeeds", func() {
			w := do(mux, http.MethodPost, "/rebuild", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"generation_id":"g1"`)
		})

		Convey("When one is already running", func() {
			deps.rebuildErr = zone.ErrRebuildInProgress
			w := do(mux, http.MethodPost, "/rebuild", "")

			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "rebuild_in_progress")
		})

		Convey("When there is no data to rebuild from", func() {
			deps.rebuildErr = fmt.Errorf("%w: %w", model.ErrCacheRebuild, model.ErrNoRecentData)
			w := do(mux, http.MethodPost, "/rebuild", "")

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		err := api.WrapKind("api.op", api.ErrBadRequest, model.ErrInvalidBatch)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidBatch), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.op: ")
		})

		Convey("Then wrapping nil stays nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})

		Convey("Then a bare kind renders its op", func() {
			So(api.NewKind("api.op", api.ErrUnavailable).Error(), ShouldEqual, "api.op: service unavailable")
		})
	})
}
