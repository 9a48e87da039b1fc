package middleware

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "org-1", "owner")

	if v, ok := GetUserID(ctx); !ok || v != "user-1" {
		t.Errorf("GetUserID = %q, %v; want user-1, true", v, ok)
	}
	if v, ok := GetOrgID(ctx); !ok || v != "org-1" {
		t.Errorf("GetOrgID = %q, %v; want org-1, true", v, ok)
	}
	if v, ok := GetRole(ctx); !ok || v != "owner" {
		t.Errorf("GetRole = %q, %v; want owner, true", v, ok)
	}
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID should return false on empty context")
	}
	if _, ok := GetOrgID(ctx); ok {
		t.Error("GetOrgID should return false on empty context")
	}
	if _, ok := GetRole(ctx); ok {
		t.Error("GetRole should return false on empty context")
	}
}
