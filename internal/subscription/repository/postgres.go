package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/domain"
)

// PostgresRepository stores subscriptions in Postgres.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a subscription repository bound to q.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create persists the subscription. The subscription must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Subscription) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, org_id, plan_id, billing_cycle, status, payment_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OrgID, s.PlanID, s.BillingCycle, string(s.Status), s.PaymentReference, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByOrg returns the org's most recent subscription, or nil if it has none.
func (r *PostgresRepository) GetByOrg(ctx context.Context, orgID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := r.db.QueryRowContext(ctx, `
		SELECT id, org_id, plan_id, billing_cycle, status, payment_reference, created_at
		FROM subscriptions WHERE org_id = $1 ORDER BY created_at DESC LIMIT 1`, orgID).
		Scan(&s.ID, &s.OrgID, &s.PlanID, &s.BillingCycle, &s.Status, &s.PaymentReference, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}
