package repository

import (
	"context"
	"sync"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.Registration
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

// NewMemoryStore returns an empty store. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records: make(map[string]*domain.Registration),
		locks:   make(map[string]*sync.Mutex),
		now:     now,
	}
}

func (s *MemoryStore) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// load returns the stored record, dropping it once past its retention window.
func (s *MemoryStore) load(id string) (*domain.Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(r.ExpiresAt.Add(retentionGrace)) {
		delete(s.records, id)
		delete(s.locks, id)
		return nil, false
	}
	return r, true
}

func (s *MemoryStore) Create(_ context.Context, r *domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return ErrDuplicate
	}
	c := r.Clone()
	c.Version = 1
	s.records[r.ID] = c
	r.Version = 1
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Registration, error) {
	r, ok := s.load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (*domain.Registration, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	cur, ok := s.load(id)
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1

	s.mu.Lock()
	s.records[id] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.locks, id)
	return nil
}
