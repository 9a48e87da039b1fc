package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/domain"
)

const emailUniqueIndex = "users_email_key"

// PostgresRepository stores users in Postgres. It works on a plain handle or inside a transaction.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository bound to q.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, email_verified, phone_verified, status, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.EmailVerified, &u.PhoneVerified, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

// EmailExists reports whether a user with this email (case-insensitive) exists.
func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Create persists the user. The user must have ID set. A duplicate email yields domain.ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, phone, email_verified, phone_verified, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.EmailVerified, u.PhoneVerified, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, emailUniqueIndex) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
