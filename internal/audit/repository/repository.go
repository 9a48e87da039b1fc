package repository

import (
	"context"
	"sync"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}

// MemoryRepository keeps audit logs in memory for the in-process server and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Create(_ context.Context, a *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.entries = append(m.entries, &c)
	return nil
}

// ListByOrg returns the newest entries for orgID first.
func (m *MemoryRepository) ListByOrg(_ context.Context, orgID string, limit int) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.entries[i].OrgID == orgID {
			c := *m.entries[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
