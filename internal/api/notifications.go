package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
)

// NotificationRequest is the body for POST /v1/notifications
type NotificationRequest struct {
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Kind       string     `json:"kind,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// ListNotifications handles GET /v1/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	limit, offset := parsePagination(r)

	notifications, err := h.notifications.ListNotificationsByUser(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}

	if notifications == nil {
		notifications = []*db.Notification{}
	}
	h.writeJSON(w, http.StatusOK, notifications)
}

// CreateNotification handles POST /v1/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "message is required")
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = db.KindReminder
	}
	switch kind {
	case db.KindDeadline, db.KindReminder, db.KindInfo, db.KindBookmark:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid kind", "kind must be deadline, reminder, info, or bookmark")
		return
	}

	// Default the canonical timestamp to now so new records never need
	// the repair pass.
	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	n := &db.Notification{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      req.Title,
		Message:    req.Message,
		Kind:       kind,
		OccurredAt: &occurredAt,
	}

	if err := h.notifications.CreateNotification(ctx, n); err != nil {
		h.logger.Error("failed to create notification", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create notification", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, n)
}

// MarkNotificationsRead handles POST /v1/notifications/read
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	updated, err := h.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		h.logger.Error("failed to mark notifications read", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to mark notifications read", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
