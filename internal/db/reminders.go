package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ReminderRepository handles database operations for reminders
type ReminderRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{
		db:     db,
		logger: logger,
	}
}

// CreateReminder inserts a new reminder into the database
func (r *ReminderRepository) CreateReminder(ctx context.Context, rem *Reminder) error {
	query := `
		INSERT INTO reminders (
			id, event_id, recipient, channel, trigger_at, delivered, attempts
		) VALUES (
			$1, $2, $3, $4, $5, FALSE, 0
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		rem.ID,
		rem.EventID,
		rem.Recipient,
		rem.Channel,
		rem.TriggerAt,
	).Scan(&rem.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("insert reminder: %w", err)
	}

	r.logger.Info("reminder created",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("event_id", rem.EventID.String()),
		zap.Time("trigger_at", rem.TriggerAt),
	)

	return nil
}

// GetReminder retrieves a reminder by ID
func (r *ReminderRepository) GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	query := `
		SELECT
			id, event_id, recipient, channel, trigger_at, delivered,
			delivered_at, attempts, last_error, orphaned_at, created_at
		FROM reminders
		WHERE id = $1
	`

	var rem Reminder
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&rem.ID,
		&rem.EventID,
		&rem.Recipient,
		&rem.Channel,
		&rem.TriggerAt,
		&rem.Delivered,
		&rem.DeliveredAt,
		&rem.Attempts,
		&rem.LastError,
		&rem.OrphanedAt,
		&rem.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		r.logger.Error("failed to get reminder",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	return &rem, nil
}

// FindDue returns reminders whose trigger time has passed and which are
// neither delivered nor orphaned. Records with a NULL trigger_at are
// excluded by the comparison itself, which keeps malformed legacy rows
// out of the batch until repaired.
func (r *ReminderRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error) {
	query := `
		SELECT
			id, event_id, recipient, channel, trigger_at, delivered,
			delivered_at, attempts, last_error, orphaned_at, created_at
		FROM reminders
		WHERE delivered = FALSE
		  AND orphaned_at IS NULL
		  AND trigger_at <= $1
		ORDER BY trigger_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		var rem Reminder
		err := rows.Scan(
			&rem.ID,
			&rem.EventID,
			&rem.Recipient,
			&rem.Channel,
			&rem.TriggerAt,
			&rem.Delivered,
			&rem.DeliveredAt,
			&rem.Attempts,
			&rem.LastError,
			&rem.OrphanedAt,
			&rem.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, &rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}

// MarkDelivered flips the delivered flag for a single reminder. The
// update is conditional on delivered = FALSE so a second worker racing
// on the same id becomes a no-op instead of a lost update.
func (r *ReminderRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE reminders
		SET delivered = TRUE, delivered_at = NOW(), last_error = NULL
		WHERE id = $1 AND delivered = FALSE
	`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to mark reminder delivered",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return fmt.Errorf("mark delivered: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the id vanished or the flag was already set.
		var delivered bool
		err := r.db.Pool().QueryRow(ctx, `SELECT delivered FROM reminders WHERE id = $1`, id).Scan(&delivered)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check reminder: %w", err)
		}
		return ErrAlreadyDelivered
	}

	return nil
}

// RecordFailure bumps the attempt counter and stores the last channel
// error. Delivered stays false so the reminder is picked up again on the
// next scan.
func (r *ReminderRepository) RecordFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE reminders
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND delivered = FALSE
	`

	result, err := r.db.Pool().Exec(ctx, query, id, errMsg)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkOrphaned stamps a reminder whose event no longer exists. Orphaned
// reminders drop out of due-selection until an operator clears the stamp;
// the delivered flag is never touched.
func (r *ReminderRepository) MarkOrphaned(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE reminders
		SET orphaned_at = NOW()
		WHERE id = $1 AND orphaned_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark orphaned: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Warn("reminder orphaned",
		zap.String("reminder_id", id.String()),
	)

	return nil
}
