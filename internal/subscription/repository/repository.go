package repository

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/domain"
)

// Repository defines persistence for subscriptions.
type Repository interface {
	Create(ctx context.Context, s *domain.Subscription) error
	GetByOrg(ctx context.Context, orgID string) (*domain.Subscription, error)
}
