package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationRepository handles database operations for the in-app
// notification inbox
type NotificationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateNotification inserts a new inbox entry
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, kind, read, occurred_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		n.Kind,
		n.OccurredAt,
	).Scan(&n.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", n.ID.String()),
		)
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// ListNotificationsByUser retrieves the inbox for one user, newest first
func (r *NotificationRepository) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT id, user_id, title, message, kind, read, occurred_at, legacy_date, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY occurred_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Kind,
			&n.Read,
			&n.OccurredAt,
			&n.LegacyDate,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// MarkAllRead flags every notification for the user as read and returns
// how many were flipped
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`

	result, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ListAll retrieves every notification record. Used by the repair pass,
// which is a full-store scan by contract.
func (r *NotificationRepository) ListAll(ctx context.Context) ([]*Notification, error) {
	query := `
		SELECT id, user_id, title, message, kind, read, occurred_at, legacy_date, created_at
		FROM notifications
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Kind,
			&n.Read,
			&n.OccurredAt,
			&n.LegacyDate,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// SetOccurredAt writes the repaired canonical timestamp for one record
func (r *NotificationRepository) SetOccurredAt(ctx context.Context, id uuid.UUID, occurredAt time.Time) error {
	query := `UPDATE notifications SET occurred_at = $2 WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id, occurredAt)
	if err != nil {
		return fmt.Errorf("set occurred_at: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
