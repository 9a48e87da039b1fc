package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp"
	devotphandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/health"
	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	planrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/repository"
	reghandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mat := repository.NewMemoryMaterializer()
	svc := service.New(service.DefaultConfig(), service.Deps{
		Store:        repository.NewMemoryStore(nil),
		Slugs:        repository.NewMemoryReserver(nil),
		Emails:       repository.NewMemoryReserver(nil),
		Materializer: mat,
		SlugLookup:   mat,
		Users:        mat,
		Plans:        planrepo.NewMemoryCatalog(plandomain.DefaultPlans()),
		Sender:       devotp.NewCaptureSender(devotp.NewMemoryStore()),
		Hasher:       security.NewHasher(4),
	})
	return Deps{Registration: reghandler.NewHandler(svc, reghandler.CookieConfig{Name: "reg_session"})}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter_Routes(t *testing.T) {
	r := NewRouter(newDeps(t))

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/registration/status", http.StatusOK},
		{http.MethodGet, "/api/v1/registration/plans", http.StatusOK},
		{http.MethodGet, "/api/v1/dev/otp", http.StatusNotFound},
		{http.MethodGet, "/api/v1/account", http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := serve(r, httptest.NewRequest(tt.method, tt.path, nil)).Code; got != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestNewRouter_DevOTPAndHealth(t *testing.T) {
	d := newDeps(t)
	d.DevOTP = devotphandler.NewHandler(devotp.NewMemoryStore(), "reg_session")
	d.Health = health.NewChecker().Add("redis", func(context.Context) error { return errors.New("down") })
	r := NewRouter(d)

	if got := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/dev/otp", nil)).Code; got != http.StatusBadRequest {
		t.Errorf("dev otp without cookie = %d, want 400", got)
	}
	if got := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code; got != http.StatusServiceUnavailable {
		t.Errorf("healthz = %d, want 503", got)
	}
}

func TestNewRouter_CORS(t *testing.T) {
	d := newDeps(t)
	d.CORSOrigins = []string{"https://app.example.com"}
	r := NewRouter(d)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/registration/register", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(r, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/registration/register", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	if got := serve(r, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q", got)
	}
}
