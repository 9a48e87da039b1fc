package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/domain"
)

func TestPostgres_Create(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs("a1", "_system", sql.NullString{}, "otp_send", "registration", "10.0.0.1", sql.NullString{String: "status=200", Valid: true}, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresRepository(conn).Create(context.Background(), &domain.AuditLog{
		ID: "a1", OrgID: "_system", Action: "otp_send", Resource: "registration", IP: "10.0.0.1", Metadata: "status=200", CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListByOrg(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE org_id = $1")).WithArgs("o1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "user_id", "action", "resource", "ip", "metadata", "created_at"}).
			AddRow("a1", "o1", "u1", "registration_finalized", "registration", "10.0.0.1", nil, now))

	list, err := NewPostgresRepository(conn).ListByOrg(context.Background(), "o1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "u1", list[0].UserID)
	require.Empty(t, list[0].Metadata)
}

func TestMemoryRepository(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &domain.AuditLog{ID: "1", OrgID: "o1"}))
	require.NoError(t, r.Create(ctx, &domain.AuditLog{ID: "2", OrgID: "o2"}))
	require.NoError(t, r.Create(ctx, &domain.AuditLog{ID: "3", OrgID: "o1"}))

	list, err := r.ListByOrg(ctx, "o1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "3", list[0].ID)

	list, _ = r.ListByOrg(ctx, "o1", 1)
	require.Len(t, list, 1)
}
