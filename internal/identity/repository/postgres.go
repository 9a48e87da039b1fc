package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/identity/domain"
)

// PostgresRepository stores identities in Postgres.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an identity repository bound to q.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	hash := sql.NullString{String: i.PasswordHash, Valid: i.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, user_id, provider, provider_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, string(i.Provider), i.ProviderID, hash, i.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
