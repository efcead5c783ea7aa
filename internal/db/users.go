package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// UserRepository handles database operations for user accounts and
// their bookmarks
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// CreateUser inserts a new account. Returns ErrDuplicateEmail when the
// address is already registered.
func (r *UserRepository) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		r.logger.Error("failed to create user",
			zap.Error(err),
			zap.String("email", u.Email),
		)
		return fmt.Errorf("insert user: %w", err)
	}

	r.logger.Info("user created",
		zap.String("user_id", u.ID.String()),
	)

	return nil
}

// GetUserByEmail retrieves an account by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`

	var u User
	err := r.db.Pool().QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

// GetUser retrieves an account by ID
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`

	var u User
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

// AddBookmark saves an event to the user's bookmarks. Adding the same
// event twice is a no-op.
func (r *UserRepository) AddBookmark(ctx context.Context, userID, eventID uuid.UUID) error {
	query := `
		INSERT INTO bookmarks (user_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, event_id) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, userID, eventID); err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}

	return nil
}

// RemoveBookmark deletes an event from the user's bookmarks
func (r *UserRepository) RemoveBookmark(ctx context.Context, userID, eventID uuid.UUID) error {
	query := `DELETE FROM bookmarks WHERE user_id = $1 AND event_id = $2`

	if _, err := r.db.Pool().Exec(ctx, query, userID, eventID); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}

	return nil
}

// ListBookmarks returns the event ids the user has bookmarked
func (r *UserRepository) ListBookmarks(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT event_id FROM bookmarks
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}
