package api

import (
	"context"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// BestDependencies reads best-position records.
type BestDependencies interface {
	BestPositions(ctx context.Context, itemID string) ([]model.BestPosition, error)
}

// BestHandler handles best-position requests.
type BestHandler struct {
	deps BestDependencies
}

// NewBestHandler creates a new best-position handler.
func NewBestHandler(deps BestDependencies) *BestHandler {
	return &BestHandler{deps: deps}
}

// HandleGetBest handles GET /best/{id}.
func (h *BestHandler) HandleGetBest(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_best"
	best, err := h.deps.BestPositions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, best)
}
