package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp"
)

func newRouter(store devotp.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store, "reg_session").Register(r.Group("/api/v1/registration"))
	return r
}

func TestGetOTP_ReturnsCode(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "ref-1", "123456", time.Now().UTC().Add(time.Minute))
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registration/dev/otp", nil)
	req.AddCookie(&http.Cookie{Name: "reg_session", Value: "ref-1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		OTP  string `json:"otp"`
		Note string `json:"note"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.OTP != "123456" || body.Note != devOTPNote {
		t.Errorf("body = %+v", body)
	}
}

func TestGetOTP_NoCookie(t *testing.T) {
	r := newRouter(devotp.NewMemoryStore())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/registration/dev/otp", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetOTP_NotFound(t *testing.T) {
	r := newRouter(devotp.NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/registration/dev/otp", nil)
	req.AddCookie(&http.Cookie{Name: "reg_session", Value: "missing"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
