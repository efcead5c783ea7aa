package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookmarkRequest is the body for POST /v1/bookmarks
type BookmarkRequest struct {
	EventID string `json:"event_id"`
}

// AddBookmark handles POST /v1/bookmarks
func (h *Handler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	var req BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid event_id", "event_id must be a valid UUID")
		return
	}

	if err := h.users.AddBookmark(ctx, userID, eventID); err != nil {
		h.logger.Error("failed to add bookmark", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to add bookmark", "")
		return
	}

	h.listBookmarks(w, r, userID)
}

// RemoveBookmark handles DELETE /v1/bookmarks/{eventID}
func (h *Handler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid event ID", "ID must be a valid UUID")
		return
	}

	if err := h.users.RemoveBookmark(ctx, userID, eventID); err != nil {
		h.logger.Error("failed to remove bookmark", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to remove bookmark", "")
		return
	}

	h.listBookmarks(w, r, userID)
}

// listBookmarks writes the user's current bookmark list, matching the
// add/remove response shape.
func (h *Handler) listBookmarks(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	ids, err := h.users.ListBookmarks(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list bookmarks", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list bookmarks", "")
		return
	}

	if ids == nil {
		ids = []uuid.UUID{}
	}
	h.writeJSON(w, http.StatusOK, ids)
}
