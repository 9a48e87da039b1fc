package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	auditdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/domain"
	membershipdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// FinalizeResult is the outcome of Finalize.
type FinalizeResult struct {
	domain.Finalization
	// AccessToken is set on the first successful finalization when a token issuer is configured.
	AccessToken      string     `json:"access_token,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	AlreadyFinalized bool       `json:"already_finalized"`
}

// Finalize atomically creates the user, organization, owner membership and
// subscription, then discards the temporary registration.
//
// A replay for a registration that was already consumed returns the original
// identities together with domain.ErrAlreadyFinalized; callers treat that as success.
// Finalize never produces a second user or organization for the same registration.
func (s *Service) Finalize(ctx context.Context, id string) (*FinalizeResult, error) {
	if !security.ValidReference(id) {
		return nil, domain.ErrRegistrationExpired
	}
	now := s.now()
	hash := security.HashReference(id)

	r, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return s.replay(ctx, hash)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if r.Expired(now) {
		return nil, domain.ErrRegistrationExpired
	}
	if !r.ReadyToFinalize() {
		return nil, fmt.Errorf("%w: current step is %s", domain.ErrNotReady, r.CurrentStep)
	}

	f, err := s.materializer.Materialize(ctx, domain.FinalizeRequest{
		Registration:     r,
		RegistrationHash: hash,
		BillingCycle:     r.Payment.BillingCycle,
		Now:              now,
	})
	replayed := errors.Is(err, domain.ErrAlreadyFinalized)
	switch {
	case replayed && f == nil:
		return s.replay(ctx, hash)
	case replayed:
	case errors.Is(err, domain.ErrSlugTaken), errors.Is(err, domain.ErrEmailInUse):
		return nil, err
	case err != nil:
		log.Error().Err(err).Str("registration", shortHash(id)).Msg("finalize failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.consume(ctx, r)
	res := &FinalizeResult{Finalization: *f, AlreadyFinalized: replayed}
	if replayed {
		return res, domain.ErrAlreadyFinalized
	}
	if s.tokens != nil {
		token, exp, err := s.tokens.IssueOwnerAccess(f.UserID, f.OrgID, f.Slug, string(membershipdomain.RoleOwner))
		if err != nil {
			// The entities exist; the owner can still sign in normally.
			log.Error().Err(err).Str("org_id", f.OrgID).Msg("issuing owner token failed")
		} else {
			res.AccessToken, res.ExpiresAt = token, &exp
		}
	}
	log.Info().Str("registration", shortHash(id)).Str("org_id", f.OrgID).Str("user_id", f.UserID).Msg("registration finalized")
	meta, _ := json.Marshal(map[string]string{"slug": f.Slug, "plan_id": r.SelectedPlanID})
	s.logAudit(ctx, f.OrgID, f.UserID, auditdomain.ActionRegistrationFinalized, string(meta))
	ev := telemetry.NewEvent(telemetry.EventRegistrationFinalized, hash, domain.StepCompleted.String(), now)
	ev.OrgID, ev.UserID = f.OrgID, f.UserID
	if s.events != nil {
		telemetry.EmitAsync(s.events, ev.With("plan_id", r.SelectedPlanID))
	}
	return res, nil
}

func (s *Service) replay(ctx context.Context, hash string) (*FinalizeResult, error) {
	f, err := s.materializer.Lookup(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if f == nil {
		return nil, domain.ErrRegistrationExpired
	}
	return &FinalizeResult{Finalization: *f, AlreadyFinalized: true}, domain.ErrAlreadyFinalized
}

// consume removes the temporary record after materialization. Failures are logged:
// a leftover record is inert because any later Finalize replays from the ledger.
func (s *Service) consume(ctx context.Context, r *domain.Registration) {
	if err := s.store.Delete(ctx, r.ID); err != nil {
		log.Warn().Err(err).Str("registration", shortHash(r.ID)).Msg("deleting finalized registration failed")
	}
	s.releaseSlug(ctx, r)
	s.releaseEmail(ctx, r.Email, r.ID)
}
