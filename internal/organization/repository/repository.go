package repository

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
	ActiveSlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, o *domain.Org) error
}
