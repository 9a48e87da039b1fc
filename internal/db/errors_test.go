package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	slugErr := &pgconn.PgError{Code: "23505", ConstraintName: "organizations_active_slug_key"}
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", slugErr, "", true},
		{"matching constraint", slugErr, "organizations_active_slug_key", true},
		{"wrapped", fmt.Errorf("insert org: %w", slugErr), "organizations_active_slug_key", true},
		{"other constraint", slugErr, "users_email_key", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.want)
			}
		})
	}
}
