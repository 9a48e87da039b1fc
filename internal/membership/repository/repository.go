package repository

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	Create(ctx context.Context, m *domain.Membership) error
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
}
