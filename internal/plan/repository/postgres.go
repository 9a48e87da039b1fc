package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
)

// PostgresRepository reads and seeds plans in Postgres.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a plan repository bound to q.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

const planColumns = `id, name, price_cents, currency, billing_cycle, active, sort_order, created_at`

// ListActive returns active plans in display order.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]domain.Plan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans WHERE active ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	var out []domain.Plan
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.BillingCycle, &p.Active, &p.SortOrder, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// GetActive returns the active plan with id.
func (r *PostgresRepository) GetActive(ctx context.Context, id string) (*domain.Plan, error) {
	var p domain.Plan
	err := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1 AND active`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.BillingCycle, &p.Active, &p.SortOrder, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// Upsert inserts the plan or updates an existing row with the same id.
func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			billing_cycle = EXCLUDED.billing_cycle,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order`,
		p.ID, p.Name, p.PriceCents, p.Currency, p.BillingCycle, p.Active, p.SortOrder, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
