package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
)

// Catalog serves the active plans a registration may select.
type Catalog interface {
	ListActive(ctx context.Context) ([]domain.Plan, error)
	// GetActive returns the plan or domain.ErrPlanNotFound if it is unknown or inactive.
	GetActive(ctx context.Context, id string) (*domain.Plan, error)
}

// MemoryCatalog is an in-process Catalog.
type MemoryCatalog struct {
	mu    sync.RWMutex
	plans map[string]domain.Plan
}

// NewMemoryCatalog returns a catalog holding plans.
func NewMemoryCatalog(plans []domain.Plan) *MemoryCatalog {
	c := &MemoryCatalog{plans: make(map[string]domain.Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

func (c *MemoryCatalog) ListActive(_ context.Context) ([]domain.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *MemoryCatalog) GetActive(_ context.Context, id string) (*domain.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[id]
	if !ok || !p.Active {
		return nil, domain.ErrPlanNotFound
	}
	return &p, nil
}
