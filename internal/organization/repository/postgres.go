package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
)

const activeSlugIndex = "organizations_active_slug_key"

// PostgresRepository stores organizations in Postgres.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an organization repository bound to q.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the org for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Org, error) {
	var o domain.Org
	err := r.db.QueryRowContext(ctx, `SELECT id, name, slug, status, created_at FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &o, nil
}

// ActiveSlugExists reports whether an active organization already uses slug.
func (r *PostgresRepository) ActiveSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE slug = $1 AND status = 'active')`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Create persists the org. The unique index on active slugs surfaces as domain.ErrSlugTaken.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Name, o.Slug, string(o.Status), o.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlugIndex) {
			return domain.ErrSlugTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
