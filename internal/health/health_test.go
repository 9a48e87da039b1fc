package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestRun_NoChecks(t *testing.T) {
	r := NewChecker().AddPinger("db", nil).AddPolicy("policy", nil).Run(context.Background())
	if !r.Healthy {
		t.Error("checker without checks must be healthy")
	}
}

func TestRun_Components(t *testing.T) {
	tests := []struct {
		name    string
		ping    error
		policy  error
		healthy bool
	}{
		{"all ok", nil, nil, true},
		{"db down", errors.New("connection refused"), nil, false},
		{"policy broken", nil, errors.New("rego compile failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker().
				AddPinger("postgres", &mockPinger{pingErr: tt.ping}).
				AddPolicy("policy", &mockPolicyChecker{healthErr: tt.policy})
			r := c.Run(context.Background())
			if r.Healthy != tt.healthy {
				t.Errorf("healthy = %v, want %v", r.Healthy, tt.healthy)
			}
			if len(r.Components) != 2 {
				t.Errorf("components = %v", r.Components)
			}
			if tt.ping != nil && r.Components["postgres"] != "unavailable" {
				t.Errorf("postgres = %q, want unavailable", r.Components["postgres"])
			}
		})
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	down := NewChecker().Add("redis", func(context.Context) error { return errors.New("timeout") })
	r := gin.New()
	r.GET("/healthz", down.Handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body Report
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Healthy || body.Components["redis"] != "unavailable" {
		t.Errorf("body = %+v", body)
	}
}

type recordingSetter struct {
	mu       sync.Mutex
	statuses []healthpb.HealthCheckResponse_ServingStatus
}

func (r *recordingSetter) SetServingStatus(_ string, s healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingSetter) first() (healthpb.HealthCheckResponse_ServingStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return 0, false
	}
	return r.statuses[0], true
}

func TestWatch_SetsInitialStatus(t *testing.T) {
	setter := &recordingSetter{}
	c := NewChecker().AddPinger("postgres", &mockPinger{pingErr: errors.New("down")})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, setter, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if s, ok := setter.first(); ok {
			if s != healthpb.HealthCheckResponse_NOT_SERVING {
				t.Errorf("status = %v, want NOT_SERVING", s)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Watch did not set a status")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
