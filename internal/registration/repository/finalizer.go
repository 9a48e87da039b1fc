package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	identitydomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/identity/domain"
	identityrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/identity/repository"
	membershipdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
	membershiprepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/repository"
	orgdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
	orgrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	subscriptiondomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/domain"
	subscriptionrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/repository"
	userdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/domain"
	userrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/repository"
)

// Materializer turns a completed registration into permanent entities exactly once.
type Materializer interface {
	// Lookup returns the ledger entry for a registration hash, or nil if none.
	Lookup(ctx context.Context, registrationHash string) (*domain.Finalization, error)
	// Materialize creates the user, organization, owner membership and subscription atomically.
	// If the registration was already consumed it returns the existing entry with domain.ErrAlreadyFinalized.
	Materialize(ctx context.Context, req domain.FinalizeRequest) (*domain.Finalization, error)
}

// PostgresMaterializer runs materialization in one transaction.
type PostgresMaterializer struct {
	conn  *sql.DB
	newID func() string
}

func NewPostgresMaterializer(conn *sql.DB) *PostgresMaterializer {
	return &PostgresMaterializer{conn: conn, newID: uuid.NewString}
}

// Lookup reads the ledger outside a transaction.
func (m *PostgresMaterializer) Lookup(ctx context.Context, registrationHash string) (*domain.Finalization, error) {
	return lookupFinalization(ctx, m.conn, registrationHash)
}

func (m *PostgresMaterializer) Materialize(ctx context.Context, req domain.FinalizeRequest) (*domain.Finalization, error) {
	reg := req.Registration
	var (
		result   *domain.Finalization
		replayed bool
	)
	err := db.WithTx(ctx, m.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		// Serialize concurrent finalizations of the same registration.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, req.RegistrationHash); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		existing, err := lookupFinalization(ctx, tx, req.RegistrationHash)
		if err != nil {
			return err
		}
		if existing != nil {
			result, replayed = existing, true
			return nil
		}

		now := req.Now.UTC()
		user := &userdomain.User{
			ID:            m.newID(),
			Email:         reg.Email,
			FirstName:     reg.FirstName,
			LastName:      reg.LastName,
			Phone:         reg.PhoneNumber,
			EmailVerified: reg.VerifiedMethod == domain.MethodEmail,
			PhoneVerified: reg.VerifiedMethod == domain.MethodSMS,
			Status:        userdomain.UserStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := userrepo.NewPostgresRepository(tx).Create(ctx, user); err != nil {
			if errors.Is(err, userdomain.ErrEmailTaken) {
				return domain.ErrEmailInUse
			}
			return err
		}
		ident := &identitydomain.Identity{
			ID:           m.newID(),
			UserID:       user.ID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   user.Email,
			PasswordHash: reg.PasswordHash,
			CreatedAt:    now,
		}
		if err := identityrepo.NewPostgresRepository(tx).Create(ctx, ident); err != nil {
			return err
		}
		org := &orgdomain.Org{
			ID:        m.newID(),
			Name:      reg.Account.Name,
			Slug:      reg.Account.Slug,
			Status:    orgdomain.OrgStatusActive,
			CreatedAt: now,
		}
		if err := orgrepo.NewPostgresRepository(tx).Create(ctx, org); err != nil {
			if errors.Is(err, orgdomain.ErrSlugTaken) {
				return domain.ErrSlugTaken
			}
			return err
		}
		mem := &membershipdomain.Membership{
			ID:        m.newID(),
			UserID:    user.ID,
			OrgID:     org.ID,
			Role:      membershipdomain.RoleOwner,
			CreatedAt: now,
		}
		if err := membershiprepo.NewPostgresRepository(tx).Create(ctx, mem); err != nil {
			return err
		}
		sub := &subscriptiondomain.Subscription{
			ID:               m.newID(),
			OrgID:            org.ID,
			PlanID:           reg.SelectedPlanID,
			BillingCycle:     req.BillingCycle,
			Status:           subscriptiondomain.StatusPendingCapture,
			PaymentReference: reg.Payment.Reference,
			CreatedAt:        now,
		}
		if err := subscriptionrepo.NewPostgresRepository(tx).Create(ctx, sub); err != nil {
			return err
		}

		fin := &domain.Finalization{
			RegistrationHash: req.RegistrationHash,
			UserID:           user.ID,
			OrgID:            org.ID,
			MembershipID:     mem.ID,
			SubscriptionID:   sub.ID,
			Slug:             org.Slug,
			FinalizedAt:      now,
		}
		if err := insertFinalization(ctx, tx, fin); err != nil {
			return err
		}
		result = fin
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyFinalized) {
		// The ledger row was written by another transaction after our check; it is committed now.
		existing, lerr := lookupFinalization(ctx, m.conn, req.RegistrationHash)
		if lerr != nil {
			return nil, lerr
		}
		if existing == nil {
			return nil, fmt.Errorf("db error: finalization conflict for %s without a ledger entry", req.RegistrationHash)
		}
		return existing, domain.ErrAlreadyFinalized
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		return result, domain.ErrAlreadyFinalized
	}
	return result, nil
}

func lookupFinalization(ctx context.Context, q db.DBTX, registrationHash string) (*domain.Finalization, error) {
	var f domain.Finalization
	err := q.QueryRowContext(ctx, `
		SELECT registration_hash, user_id, org_id, membership_id, subscription_id, slug, finalized_at
		FROM registration_finalizations WHERE registration_hash = $1`, registrationHash).
		Scan(&f.RegistrationHash, &f.UserID, &f.OrgID, &f.MembershipID, &f.SubscriptionID, &f.Slug, &f.FinalizedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &f, nil
}

func insertFinalization(ctx context.Context, q db.DBTX, f *domain.Finalization) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO registration_finalizations (registration_hash, user_id, org_id, membership_id, subscription_id, slug, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.RegistrationHash, f.UserID, f.OrgID, f.MembershipID, f.SubscriptionID, f.Slug, f.FinalizedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "registration_finalizations_pkey") {
			return domain.ErrAlreadyFinalized
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
