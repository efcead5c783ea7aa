package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
)

// ListEvents handles GET /v1/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parsePagination(r)

	events, err := h.events.ListEvents(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list events", "")
		return
	}

	if events == nil {
		events = []*db.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /v1/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid event ID", "ID must be a valid UUID")
		return
	}

	ev, err := h.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Event not found", "")
			return
		}
		h.logger.Error("failed to get event", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get event", "")
		return
	}

	h.writeJSON(w, http.StatusOK, ev)
}
