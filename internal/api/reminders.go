package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/mailer"
	"github.com/hansika-eng/clockdin/internal/metrics"
	"github.com/hansika-eng/clockdin/internal/redis"
)

// ReminderRequest is the body for POST /v1/reminders
type ReminderRequest struct {
	EventID   string    `json:"event_id"`
	Recipient string    `json:"recipient"`
	Channel   string    `json:"channel,omitempty"`
	TriggerAt time.Time `json:"trigger_at"`
}

// ReminderResponse is returned after creating a reminder
type ReminderResponse struct {
	ID string `json:"id"`
}

// CreateReminder handles POST /v1/reminders.
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserID(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.EventID == "" || req.Recipient == "" || req.TriggerAt.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "event_id, recipient, and trigger_at are required")
		return
	}

	channel := req.Channel
	if channel == "" {
		channel = mailer.ChannelEmail
	}
	if channel != mailer.ChannelEmail && channel != mailer.ChannelSMS {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid channel", "channel must be email or sms")
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid event_id", "event_id must be a valid UUID")
		return
	}

	// The reminder engine would orphan this on the first scan anyway;
	// reject it while the client can still fix it.
	if _, err := h.events.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Event not found", "")
			return
		}
		h.logger.Error("failed to look up event", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to look up event", "")
		return
	}

	// Check idempotency if key provided
	if idempotencyKey != "" && h.idempotency != nil {
		cachedResult, err := h.idempotency.CheckOrReserve(ctx, userID.String(), idempotencyKey)

		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		} else if cachedResult != nil {
			metrics.RecordIdempotencyHit()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cachedResult.StatusCode)
			_ = json.NewEncoder(w).Encode(ReminderResponse{ID: cachedResult.ReminderID})
			return
		}
	}

	rem := &db.Reminder{
		ID:        uuid.New(),
		EventID:   eventID,
		Recipient: req.Recipient,
		Channel:   channel,
		TriggerAt: req.TriggerAt,
	}

	if err := h.reminders.CreateReminder(ctx, rem); err != nil {
		h.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("event_id", req.EventID),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create reminder", "")
		return
	}

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			ReminderID: rem.ID.String(),
			StatusCode: http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, userID.String(), idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	h.writeJSON(w, http.StatusCreated, ReminderResponse{ID: rem.ID.String()})
}
