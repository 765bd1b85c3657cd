package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nbunney/rrcompanion/internal/domain/model"
)

// ItemDependencies maintains the item catalog.
type ItemDependencies interface {
	PutItem(ctx context.Context, item model.Item) error
}

// ItemsHandler handles catalog writes.
type ItemsHandler struct {
	deps ItemDependencies
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps ItemDependencies) *ItemsHandler {
	return &ItemsHandler{deps: deps}
}

// HandlePutItem handles PUT /items/{id}. The path id wins over any id in the body.
func (h *ItemsHandler) HandlePutItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_item"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing item id")))
		return
	}
	var item model.Item
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	item.ID = id
	if err := h.deps.PutItem(r.Context(), item); err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
