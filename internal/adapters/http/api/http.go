// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/adapters/mq/queue"
	"github.com/nbunney/rrcompanion/internal/adapters/repository"
	service "github.com/nbunney/rrcompanion/internal/app"
	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/internal/position"
	"github.com/nbunney/rrcompanion/internal/zone"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SnapshotDependencies
	ItemDependencies
	PositionDependencies
	ZoneDependencies
	BestDependencies
	RebuildDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	snapshotsHandler *SnapshotsHandler
	itemsHandler     *ItemsHandler
	positionHandler  *PositionHandler
	zoneHandler      *ZoneHandler
	bestHandler      *BestHandler
	rebuildHandler   *RebuildHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		snapshotsHandler: NewSnapshotsHandler(deps),
		itemsHandler:     NewItemsHandler(deps),
		positionHandler:  NewPositionHandler(deps),
		zoneHandler:      NewZoneHandler(deps, defaultMaxSpan),
		bestHandler:      NewBestHandler(deps),
		rebuildHandler:   NewRebuildHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /snapshots", MetricsMiddleware(s.snapshotsHandler.HandlePostSnapshot, "snapshots"))
	mux.HandleFunc("PUT /items/{id}", MetricsMiddleware(s.itemsHandler.HandlePutItem, "items"))
	mux.HandleFunc("GET /position/{id}", MetricsMiddleware(s.positionHandler.HandleGetPosition, "position"))
	mux.HandleFunc("GET /zone", MetricsMiddleware(s.zoneHandler.HandleGetZone, "zone"))
	mux.HandleFunc("GET /best/{id}", MetricsMiddleware(s.bestHandler.HandleGetBest, "best"))
	mux.HandleFunc("POST /rebuild", MetricsMiddleware(s.rebuildHandler.HandlePostRebuild, "rebuild"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error onto a status and error code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidBatch),
		errors.Is(err, model.ErrUnknownItem),
		errors.Is(err, position.ErrEmptyID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotRankable):
		return http.StatusNotFound, "not_ranked"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, zone.ErrRebuildInProgress):
		return http.StatusConflict, "rebuild_in_progress"
	case errors.Is(err, model.ErrNoRecentData):
		return http.StatusServiceUnavailable, "no_data"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, model.ErrCacheRebuild):
		return http.StatusInternalServerError, "rebuild_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
