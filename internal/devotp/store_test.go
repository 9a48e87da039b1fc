package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "reg-1", "123456", time.Now().UTC().Add(5*time.Minute))

	code, ok := store.Get(ctx, "reg-1")
	if !ok || code != "123456" {
		t.Fatalf("Get = %q, %v; want 123456, true", code, ok)
	}
	if _, ok := store.Get(ctx, "reg-2"); ok {
		t.Error("Get should return false for unknown registration")
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)

	store.Put(ctx, "reg-1", "111111", exp)
	store.Put(ctx, "reg-1", "222222", exp)

	if code, _ := store.Get(ctx, "reg-1"); code != "222222" {
		t.Errorf("code = %q, want latest 222222", code)
	}
}

func TestMemoryStore_ExpiredIsEvicted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Put(ctx, "reg-1", "123456", now.Add(time.Minute))
	now = now.Add(time.Minute)

	if _, ok := store.Get(ctx, "reg-1"); ok {
		t.Fatal("Get should return false at expiry")
	}
	store.mu.RLock()
	_, still := store.m["reg-1"]
	store.mu.RUnlock()
	if still {
		t.Error("expired entry should be evicted")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("reg-%d", i)
			store.Put(ctx, id, "000000", exp)
			if _, ok := store.Get(ctx, id); !ok {
				t.Errorf("Get(%s) missing", id)
			}
		}(i)
	}
	wg.Wait()
}

func TestCaptureSender_StoresCode(t *testing.T) {
	store := NewMemoryStore()
	sender := NewCaptureSender(store)

	err := sender.Send(context.Background(), otp.Message{
		Method:         domain.MethodEmail,
		Destination:    "jane@example.com",
		Code:           "987654",
		ExpiresIn:      10 * time.Minute,
		RegistrationID: "reg-9",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if code, ok := store.Get(context.Background(), "reg-9"); !ok || code != "987654" {
		t.Errorf("Get = %q, %v", code, ok)
	}
}
