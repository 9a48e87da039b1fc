package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEmitAsync_NilInputs(t *testing.T) {
	EmitAsync(nil, NewEvent(EventOTPSent, "h", "VERIFY", time.Now()))
	EmitAsync(&mockEventEmitter{}, nil)
}

func TestEmitAsync_Delivers(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(m, NewEvent(EventOTPSent, "h", "VERIFY", time.Now()))
	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("event was not emitted")
	}
	if m.count() != 1 {
		t.Errorf("events = %d, want 1", m.count())
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	m := &mockEventEmitter{emitErr: errors.New("kafka down"), done: make(chan struct{}, 1)}
	EmitAsync(m, NewEvent(EventOTPSent, "h", "VERIFY", time.Now()))
	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("event was not emitted")
	}
}

func TestFanout(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	err := Fanout{a, nil, b}.Emit(context.Background(), NewEvent(EventOTPSent, "h", "", time.Now()))
	if err == nil || err.Error() != "b failed" {
		t.Errorf("err = %v, want b failed", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d, %d", a.count(), b.count())
	}
}

func TestEventRoundTrip(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 30, 0, 123, time.UTC)
	e := NewEvent(EventRegistrationFinalized, "abc", "COMPLETED", at).With("plan_id", "growth")
	e.OrgID = "org-1"
	e.UserID = "user-1"

	b, err := e.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != e.Type || got.OrgID != "org-1" || got.UserID != "user-1" || got.Step != "COMPLETED" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	if got.Attributes["plan_id"] != "growth" {
		t.Errorf("Attributes = %v", got.Attributes)
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected decode error")
	}
}
