// Package repository persists temporary registrations, slug reservations and the
// finalization ledger.
package repository

import (
	"context"
	"errors"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

var (
	// ErrNotFound is returned when no live registration exists for the reference.
	ErrNotFound = errors.New("registration not found")
	// ErrDuplicate is returned by Create when the reference is already in use.
	ErrDuplicate = errors.New("registration already exists")
	// ErrConflict is returned when an update kept losing to concurrent writers.
	ErrConflict = errors.New("registration update conflict")
)

// UpdateFunc mutates a registration in place. It may run more than once when a
// concurrent write wins, so it must not perform I/O. Returning an error aborts the
// update without writing.
type UpdateFunc func(r *domain.Registration) error

// Store holds in-progress registrations.
// Update is the only way to change a stored record; it serializes read-modify-write per id.
type Store interface {
	Create(ctx context.Context, r *domain.Registration) error
	Get(ctx context.Context, id string) (*domain.Registration, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Registration, error)
	Delete(ctx context.Context, id string) error
}
