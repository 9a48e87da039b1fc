package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	membershipdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

// MemoryMaterializer keeps permanent entities in process memory. It also answers the
// email and slug lookups so an in-memory server behaves like the Postgres one.
type MemoryMaterializer struct {
	mu          sync.Mutex
	ledger      map[string]domain.Finalization
	emails      map[string]string
	slugs       map[string]string
	memberships map[string][]membershipdomain.Membership
}

func NewMemoryMaterializer() *MemoryMaterializer {
	return &MemoryMaterializer{
		ledger:      make(map[string]domain.Finalization),
		emails:      make(map[string]string),
		slugs:       make(map[string]string),
		memberships: make(map[string][]membershipdomain.Membership),
	}
}

func (m *MemoryMaterializer) Lookup(_ context.Context, registrationHash string) (*domain.Finalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.ledger[registrationHash]; ok {
		return &f, nil
	}
	return nil, nil
}

func (m *MemoryMaterializer) Materialize(_ context.Context, req domain.FinalizeRequest) (*domain.Finalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.ledger[req.RegistrationHash]; ok {
		return &f, domain.ErrAlreadyFinalized
	}
	reg := req.Registration
	email := strings.ToLower(reg.Email)
	if _, ok := m.emails[email]; ok {
		return nil, domain.ErrEmailInUse
	}
	if _, ok := m.slugs[reg.Account.Slug]; ok {
		return nil, domain.ErrSlugTaken
	}

	f := domain.Finalization{
		RegistrationHash: req.RegistrationHash,
		UserID:           uuid.NewString(),
		OrgID:            uuid.NewString(),
		MembershipID:     uuid.NewString(),
		SubscriptionID:   uuid.NewString(),
		Slug:             reg.Account.Slug,
		FinalizedAt:      req.Now.UTC(),
	}
	m.emails[email] = f.UserID
	m.slugs[f.Slug] = f.OrgID
	m.memberships[f.OrgID] = append(m.memberships[f.OrgID], membershipdomain.Membership{
		ID: f.MembershipID, UserID: f.UserID, OrgID: f.OrgID, Role: membershipdomain.RoleOwner, CreatedAt: f.FinalizedAt,
	})
	m.ledger[req.RegistrationHash] = f
	return &f, nil
}

// EmailExists reports whether a materialized user owns email.
func (m *MemoryMaterializer) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.emails[strings.ToLower(email)]
	return ok, nil
}

// ActiveSlugExists reports whether a materialized organization uses slug.
func (m *MemoryMaterializer) ActiveSlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slugs[slug]
	return ok, nil
}

// Memberships returns the memberships of an organization.
func (m *MemoryMaterializer) Memberships(orgID string) []membershipdomain.Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]membershipdomain.Membership(nil), m.memberships[orgID]...)
}
