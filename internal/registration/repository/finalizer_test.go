package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

func completedRegistration() *domain.Registration {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Registration{
		ID:             "ref",
		CurrentStep:    domain.StepCompleted,
		FirstName:      "Jane",
		LastName:       "Doe",
		Email:          "Jane@Example.com",
		PhoneNumber:    "+15551234567",
		PasswordHash:   "$2a$12$hash",
		ConsentGiven:   true,
		VerifiedMethod: domain.MethodEmail,
		VerifiedAt:     &now,
		Account:        &domain.AccountDraft{Name: "Acme", Slug: "acme"},
		SelectedPlanID: "growth",
		Payment:        &domain.PaymentAuthorization{Reference: "auth_1", PlanID: "growth", AmountCents: 4900, Currency: "USD", AuthorizedAt: now},
		ExpiresAt:      now.Add(time.Hour),
	}
}

func finalizeRequest() domain.FinalizeRequest {
	return domain.FinalizeRequest{
		Registration:     completedRegistration(),
		RegistrationHash: "hash-1",
		BillingCycle:     "monthly",
		Now:              time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestMemoryMaterializer_Idempotent(t *testing.T) {
	m := NewMemoryMaterializer()
	ctx := context.Background()

	first, err := m.Materialize(ctx, finalizeRequest())
	require.NoError(t, err)
	assert.Equal(t, "acme", first.Slug)

	again, err := m.Materialize(ctx, finalizeRequest())
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Equal(t, first.UserID, again.UserID)
	assert.Equal(t, first.OrgID, again.OrgID)

	members := m.Memberships(first.OrgID)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsOwner())

	got, err := m.Lookup(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, first.SubscriptionID, got.SubscriptionID)

	exists, _ := m.EmailExists(ctx, "jane@example.com")
	assert.True(t, exists)
	exists, _ = m.ActiveSlugExists(ctx, "acme")
	assert.True(t, exists)
}

func TestMemoryMaterializer_Conflicts(t *testing.T) {
	m := NewMemoryMaterializer()
	ctx := context.Background()
	_, err := m.Materialize(ctx, finalizeRequest())
	require.NoError(t, err)

	req := finalizeRequest()
	req.RegistrationHash = "hash-2"
	_, err = m.Materialize(ctx, req)
	require.ErrorIs(t, err, domain.ErrEmailInUse)

	req.Registration.Email = "other@example.com"
	_, err = m.Materialize(ctx, req)
	require.ErrorIs(t, err, domain.ErrSlugTaken)
}

var ledgerCols = []string{"registration_hash", "user_id", "org_id", "membership_id", "subscription_id", "slug", "finalized_at"}

func newSQLMaterializer(t *testing.T) (*PostgresMaterializer, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	m := NewPostgresMaterializer(conn)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return m, mock
}

func TestPostgresMaterializer_CreatesEntitiesInOneTx(t *testing.T) {
	m, mock := newSQLMaterializer(t)
	req := finalizeRequest()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WithArgs("hash-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WithArgs("hash-1").WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("id-1", "Jane@Example.com", "Jane", "Doe", "+15551234567", true, false, "active", req.Now, req.Now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organizations")).
		WithArgs("id-3", "Acme", "acme", "active", req.Now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memberships")).
		WithArgs("id-4", "id-1", "id-3", "owner", req.Now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("id-5", "id-3", "growth", "monthly", "pending_capture", "auth_1", req.Now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_finalizations")).
		WithArgs("hash-1", "id-1", "id-3", "id-4", "id-5", "acme", req.Now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	fin, err := m.Materialize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "id-1", fin.UserID)
	assert.Equal(t, "id-3", fin.OrgID)
	assert.Equal(t, "id-5", fin.SubscriptionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterializer_ReplayReturnsLedgerEntry(t *testing.T) {
	m, mock := newSQLMaterializer(t)
	at := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows(ledgerCols).AddRow("hash-1", "u1", "o1", "m1", "s1", "acme", at))
	mock.ExpectCommit()

	fin, err := m.Materialize(context.Background(), finalizeRequest())
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Equal(t, "u1", fin.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterializer_SlugConflictRollsBack(t *testing.T) {
	m, mock := newSQLMaterializer(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organizations")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_active_slug_key"})
	mock.ExpectRollback()

	_, err := m.Materialize(context.Background(), finalizeRequest())
	require.ErrorIs(t, err, domain.ErrSlugTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterializer_EmailInUse(t *testing.T) {
	m, mock := newSQLMaterializer(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	_, err := m.Materialize(context.Background(), finalizeRequest())
	require.ErrorIs(t, err, domain.ErrEmailInUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterializer_Lookup(t *testing.T) {
	m, mock := newSQLMaterializer(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WithArgs("missing").WillReturnRows(sqlmock.NewRows(ledgerCols))

	fin, err := m.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, fin)
}

func TestPostgresMaterializer_LedgerConflictRereadsEntry(t *testing.T) {
	m, mock := newSQLMaterializer(t)
	at := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organizations")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memberships")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_finalizations")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "registration_finalizations_pkey"})
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows(ledgerCols).AddRow("hash-1", "u1", "o1", "m1", "s1", "acme", at))

	fin, err := m.Materialize(context.Background(), finalizeRequest())
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	require.NotNil(t, fin)
	assert.Equal(t, "o1", fin.OrgID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterializer_LedgerConflictWithoutEntry(t *testing.T) {
	m, mock := newSQLMaterializer(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WillReturnRows(sqlmock.NewRows(ledgerCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organizations")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memberships")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_finalizations")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "registration_finalizations_pkey"})
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("FROM registration_finalizations")).WillReturnRows(sqlmock.NewRows(ledgerCols))

	fin, err := m.Materialize(context.Background(), finalizeRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Nil(t, fin)
	require.NoError(t, mock.ExpectationsWereMet())
}
