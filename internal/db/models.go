package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared by the repositories.
var (
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyDelivered = errors.New("reminder already delivered")
	ErrDuplicateEmail   = errors.New("email already registered")
)

// Reminder is a scheduled notification for an event. Delivered is flipped
// exactly once, after the outbound channel confirms the send.
type Reminder struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	Recipient   string     `json:"recipient"`
	Channel     string     `json:"channel"`
	TriggerAt   time.Time  `json:"trigger_at"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	OrphanedAt  *time.Time `json:"orphaned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Event is the catalog entry a reminder points at. The reminder engine
// does not own events; a vanished event orphans the reminder.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
	Category    string     `json:"category"`
	Location    string     `json:"location"`
	CreatedAt   time.Time  `json:"created_at"`
}

// User is an account in the surrounding CRUD app.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notification kinds
const (
	KindDeadline = "deadline"
	KindReminder = "reminder"
	KindInfo     = "info"
	KindBookmark = "bookmark"
)

// Notification is an in-app inbox entry. OccurredAt is the canonical
// timestamp; LegacyDate is the free-text field historical records carried
// before the schema settled. The repair pass normalizes the two.
type Notification struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Kind       string     `json:"kind"`
	Read       bool       `json:"read"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	LegacyDate *string    `json:"legacy_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
