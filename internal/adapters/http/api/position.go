package api

import (
	"context"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/position"
)

// PositionDependencies answers position lookups.
type PositionDependencies interface {
	Lookup(ctx context.Context, itemID string) (position.Result, error)
}

// PositionHandler handles position requests.
type PositionHandler struct {
	deps PositionDependencies
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(deps PositionDependencies) *PositionHandler {
	return &PositionHandler{deps: deps}
}

// HandleGetPosition handles GET /position/{id}.
func (h *PositionHandler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_position"
	res, err := h.deps.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
