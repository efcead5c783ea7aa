package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// EventRepository handles database operations for the event catalog
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// GetEvent retrieves an event by ID. Returns ErrNotFound when the event
// has been removed, which the reminder engine treats as an orphaned
// subject.
func (r *EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `
		SELECT id, title, description, date, category, location, created_at
		FROM events
		WHERE id = $1
	`

	var ev Event
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&ev.ID,
		&ev.Title,
		&ev.Description,
		&ev.Date,
		&ev.Category,
		&ev.Location,
		&ev.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		r.logger.Error("failed to get event",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return nil, fmt.Errorf("query event: %w", err)
	}

	return &ev, nil
}

// ListEvents retrieves the event catalog with pagination
func (r *EventRepository) ListEvents(ctx context.Context, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, title, description, date, category, location, created_at
		FROM events
		ORDER BY date ASC NULLS LAST
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		err := rows.Scan(
			&ev.ID,
			&ev.Title,
			&ev.Description,
			&ev.Date,
			&ev.Category,
			&ev.Location,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
