// Package devotp captures verification codes in memory instead of delivering them.
// It is wired only when OTP_RETURN_TO_CLIENT is enabled, which config refuses in production.
package devotp

import (
	"context"
	"sync"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp"
)

// Store holds the latest plain code per registration for dev-only retrieval.
type Store interface {
	// Put stores code for registrationID until expiresAt, replacing any previous code.
	Put(ctx context.Context, registrationID, code string, expiresAt time.Time)
	// Get returns the code for registrationID if present and not expired.
	Get(ctx context.Context, registrationID string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for registrationID until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, registrationID, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[registrationID] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for registrationID if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, registrationID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[registrationID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, registrationID)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// CaptureSender implements otp.Sender by storing codes instead of dispatching them.
type CaptureSender struct {
	store Store
	nowF  func() time.Time
}

// NewCaptureSender returns a sender that writes every code into store.
func NewCaptureSender(store Store) *CaptureSender {
	return &CaptureSender{store: store, nowF: func() time.Time { return time.Now().UTC() }}
}

// Send implements otp.Sender.
func (c *CaptureSender) Send(ctx context.Context, msg otp.Message) error {
	c.store.Put(ctx, msg.RegistrationID, msg.Code, c.nowF().Add(msg.ExpiresIn))
	return nil
}
