package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// SnapshotDependencies accepts leaderboard batches.
type SnapshotDependencies interface {
	Submit(ctx context.Context, b model.Batch) error
}

// SnapshotsHandler handles snapshot ingestion.
type SnapshotsHandler struct {
	deps SnapshotDependencies
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(deps SnapshotDependencies) *SnapshotsHandler {
	return &SnapshotsHandler{deps: deps}
}

// HandlePostSnapshot handles POST /snapshots. The batch is validated
// synchronously and applied asynchronously.
func (h *SnapshotsHandler) HandlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_snapshot"
	var b model.Batch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Submit(r.Context(), b); err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
