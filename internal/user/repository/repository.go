package repository

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
}
