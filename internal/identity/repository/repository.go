package repository

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/identity/domain"
)

// Repository defines persistence for identities. Identities are written once, inside the
// finalization transaction.
type Repository interface {
	Create(ctx context.Context, i *domain.Identity) error
}
