package api

import (
	"context"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/zone"
)

// RebuildDependencies triggers zone rebuilds.
type RebuildDependencies interface {
	RebuildNow(ctx context.Context) (zone.Report, error)
}

// RebuildHandler handles manual rebuilds.
type RebuildHandler struct {
	deps RebuildDependencies
}

// NewRebuildHandler creates a new rebuild handler.
func NewRebuildHandler(deps RebuildDependencies) *RebuildHandler {
	return &RebuildHandler{deps: deps}
}

// HandlePostRebuild handles POST /rebuild. It answers 409 while another
// rebuild is running.
func (h *RebuildHandler) HandlePostRebuild(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rebuild"
	rep, err := h.deps.RebuildNow(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
