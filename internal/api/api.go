// Package api holds the HTTP handlers for the Clockdin service: auth,
// the event catalog, bookmarks, the notification inbox, reminder
// creation, the chatbot proxy, and the operator surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/redis"
)

// ReminderRepository is the slice of the reminder store the API uses.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, rem *db.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*db.Reminder, error)
}

// EventRepository serves the event catalog.
type EventRepository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*db.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*db.Event, error)
}

// UserRepository serves accounts and bookmarks.
type UserRepository interface {
	CreateUser(ctx context.Context, u *db.User) error
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	AddBookmark(ctx context.Context, userID, eventID uuid.UUID) error
	RemoveBookmark(ctx context.Context, userID, eventID uuid.UUID) error
	ListBookmarks(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// NotificationRepository serves the in-app inbox.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *db.Notification) error
	ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}

// RepairRunner triggers the notification repair pass on demand.
type RepairRunner interface {
	Run(ctx context.Context) (int, error)
}

// ChatReplier proxies a user message to the chatbot upstream.
type ChatReplier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger        *zap.Logger
	reminders     ReminderRepository
	events        EventRepository
	users         UserRepository
	notifications NotificationRepository
	repair        RepairRunner
	chatbot       ChatReplier // nil if GEMINI_API_KEY not configured
	idempotency   *redis.IdempotencyService
	jwtSecret     []byte
}

// Options configures optional handler dependencies.
type Options struct {
	Chatbot     ChatReplier
	Idempotency *redis.IdempotencyService
}

// NewHandler creates a new API handler
func NewHandler(
	logger *zap.Logger,
	reminders ReminderRepository,
	events EventRepository,
	users UserRepository,
	notifications NotificationRepository,
	repair RepairRunner,
	jwtSecret string,
	opts Options,
) *Handler {
	return &Handler{
		logger:        logger,
		reminders:     reminders,
		events:        events,
		users:         users,
		notifications: notifications,
		repair:        repair,
		chatbot:       opts.Chatbot,
		idempotency:   opts.Idempotency,
		jwtSecret:     []byte(jwtSecret),
	}
}

// writeJSON writes a JSON response with the given status
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a problem+json style error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	h.writeJSON(w, status, ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// parsePagination reads limit/offset query parameters with defaults
func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
