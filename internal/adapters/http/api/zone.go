package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

const (
	defaultZoneLimit = 100
	defaultMaxSpan   = 1000
)

// ZoneDependencies reads the cached competitive zone.
type ZoneDependencies interface {
	Range(ctx context.Context, start, end int) ([]model.ZoneEntry, error)
}

// ZoneHandler handles zone range requests.
type ZoneHandler struct {
	deps    ZoneDependencies
	maxSpan int
}

// NewZoneHandler creates a new zone handler serving at most maxSpan ranks per request.
func NewZoneHandler(deps ZoneDependencies, maxSpan int) *ZoneHandler {
	return &ZoneHandler{deps: deps, maxSpan: maxSpan}
}

// HandleGetZone handles GET /zone?start=S&end=E. start defaults to 1 and
// end to start+99.
func (h *ZoneHandler) HandleGetZone(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_zone"
	q := r.URL.Query()
	start, err := intParam(q.Get("start"), 1)
	if err != nil || start < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("start must be a positive integer")))
		return
	}
	end, err := intParam(q.Get("end"), start+defaultZoneLimit-1)
	if err != nil || end < start {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("end must be an integer not below start")))
		return
	}
	if end-start+1 > h.maxSpan {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Range(r.Context(), start, end)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if entries == nil {
		entries = []model.ZoneEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
