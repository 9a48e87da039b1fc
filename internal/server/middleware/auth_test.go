package middleware

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
)

func newAuthRouter(t *testing.T, tokens TokenValidator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(tokens), func(c *gin.Context) {
		userID, _ := GetUserID(c.Request.Context())
		orgID, _ := GetOrgID(c.Request.Context())
		role, _ := GetRole(c.Request.Context())
		c.String(http.StatusOK, userID+"|"+orgID+"|"+role)
	})
	return r
}

func TestAuth_ValidToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.IssueOwnerAccess("user-1", "org-1", "acme", "owner")
	if err != nil {
		t.Fatalf("IssueOwnerAccess: %v", err)
	}
	r := newAuthRouter(t, tokens)

	for _, header := range []string{"Bearer " + token, "bearer " + token, "  BEARER   " + token + " "} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("header %q: status = %d, want 200", header, rec.Code)
		}
		if got := rec.Body.String(); got != "user-1|org-1|owner" {
			t.Errorf("identity = %q", got)
		}
	}
}

func TestAuth_Rejects(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	other := security.NewTokenProvider(key, &key.PublicKey, "test-issuer", "test-audience", time.Minute)
	foreign, _, err := other.IssueOwnerAccess("user-1", "org-1", "acme", "owner")
	if err != nil {
		t.Fatalf("IssueOwnerAccess: %v", err)
	}
	r := newAuthRouter(t, tokens)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no scheme", foreign},
		{"basic", "Basic dXNlcjpwYXNz"},
		{"garbage", "Bearer not-a-jwt"},
		{"foreign key", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Bearer", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Token abc", ""},
	}
	for _, tt := range tests {
		if got := extractBearer(tt.in); got != tt.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
