package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/payment"
	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// PlanInput is the PLAN submission.
type PlanInput struct {
	PlanID string `json:"plan_id" validate:"required,max=64"`
}

// PaymentInput is the PAYMENT submission. Token is the processor's card token.
type PaymentInput struct {
	Token string `json:"payment_token" validate:"required,max=256"`
}

// ListPlans returns the active plan catalog.
func (s *Service) ListPlans(ctx context.Context) ([]plandomain.Plan, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return plans, nil
}

// paymentHold is how long a claimed payment attempt blocks other submissions. It
// outlasts the gateway client timeout, so a stale claim means the call has ended.
const paymentHold = 2 * time.Minute

// SelectPlan records the chosen plan. The choice is locked once a payment was authorized
// and while one is being processed.
func (s *Service) SelectPlan(ctx context.Context, id string, in PlanInput) (*StepView, error) {
	in.PlanID = strings.TrimSpace(in.PlanID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.activePlan(ctx, in.PlanID); err != nil {
		return nil, err
	}
	now := s.now()
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		if err := r.Require(domain.StepPlan); err != nil {
			return err
		}
		if r.Payment != nil && r.Payment.PlanID != in.PlanID {
			return fmt.Errorf("%w: the plan cannot change after payment", domain.ErrStepLocked)
		}
		if r.PaymentAttempt.Pending(now, paymentHold) && r.PaymentAttempt.PlanID != in.PlanID {
			return domain.ErrPaymentInProgress
		}
		r.SelectedPlanID = in.PlanID
		r.Advance(domain.StepPlan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(telemetry.EventStepSubmitted, r, now, "step", domain.StepPlan.String(), "plan_id", in.PlanID)
	return s.view(r, r.CurrentStep, now), nil
}

// SubmitPayment authorizes the selected plan's price. The attempt is claimed on the
// registration before the gateway is called, so concurrent submissions fail with
// ErrPaymentInProgress instead of authorizing twice. A decline is recorded on the
// registration and returned as a PaymentDeclinedError; the step stays retryable.
// Once authorized, further submissions return the stored authorization.
func (s *Service) SubmitPayment(ctx context.Context, id string, in PaymentInput) (*StepView, error) {
	in.Token = strings.TrimSpace(in.Token)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := s.now()
	var (
		attempt domain.PaymentAttempt
		paid    bool
	)
	cur, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		paid = false
		if err := r.Require(domain.StepPayment); err != nil {
			return err
		}
		if r.Payment != nil {
			paid = true
			return nil
		}
		if r.PaymentAttempt.Pending(now, paymentHold) {
			return domain.ErrPaymentInProgress
		}
		attempt = domain.PaymentAttempt{Seq: r.DeclinedPayments + 1, PlanID: r.SelectedPlanID, StartedAt: now}
		r.PaymentAttempt = &attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	if paid {
		return s.view(cur, domain.StepPayment, now), nil
	}

	plan, err := s.activePlan(ctx, attempt.PlanID)
	if err != nil {
		s.abandonAttempt(ctx, id, attempt.Seq, now)
		return nil, err
	}
	auth, err := s.payments.Authorize(ctx, payment.Request{
		IdempotencyKey: paymentKey(id, plan.ID, attempt.Seq),
		PlanID:         plan.ID,
		AmountCents:    plan.PriceCents,
		Currency:       plan.Currency,
		Token:          in.Token,
		CustomerEmail:  cur.Email,
	})
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			return nil, s.recordDecline(ctx, id, attempt.Seq, declined.Reason, now)
		}
		log.Error().Err(err).Str("registration", shortHash(id)).Msg("payment authorization failed")
		s.abandonAttempt(ctx, id, attempt.Seq, now)
		return nil, fmt.Errorf("%w: payment gateway", domain.ErrUnavailable)
	}

	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		if r.Payment != nil {
			// A stale claim was retaken with the same key; the gateway returned this authorization.
			return nil
		}
		if r.SelectedPlanID != plan.ID {
			return domain.NewValidationError("plan_id", "plan changed during payment; submit again")
		}
		r.Payment = &domain.PaymentAuthorization{
			Reference:    auth.Reference,
			PlanID:       plan.ID,
			AmountCents:  plan.PriceCents,
			Currency:     plan.Currency,
			BillingCycle: plan.BillingCycle,
			AuthorizedAt: auth.AuthorizedAt,
		}
		r.PaymentAttempt = nil
		r.LastPaymentError = ""
		r.Advance(domain.StepPayment)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("registration", shortHash(id)).Str("payment_reference", auth.Reference).
			Msg("authorized payment could not be recorded")
		return nil, err
	}
	s.emit(telemetry.EventPaymentAuthorized, r, now, "plan_id", plan.ID)
	return s.view(r, domain.StepPayment, now), nil
}

// recordDecline clears the claim and moves the attempt sequence past seq, so the
// next submission uses a fresh idempotency key.
func (s *Service) recordDecline(ctx context.Context, id string, seq int, reason string, now time.Time) error {
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		if a := r.PaymentAttempt; a != nil && a.Seq == seq {
			r.PaymentAttempt = nil
		}
		if r.Payment == nil {
			r.LastPaymentError = reason
			if r.DeclinedPayments < seq {
				r.DeclinedPayments = seq
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(telemetry.EventPaymentDeclined, r, now, "reason", reason)
	return &domain.PaymentDeclinedError{Reason: reason}
}

// abandonAttempt drops the claim after a failure that may be retried with the same key.
func (s *Service) abandonAttempt(ctx context.Context, id string, seq int, now time.Time) {
	_, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		if a := r.PaymentAttempt; a != nil && a.Seq == seq {
			r.PaymentAttempt = nil
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("registration", shortHash(id)).Msg("releasing payment claim failed; it lapses on its own")
	}
}

func (s *Service) activePlan(ctx context.Context, planID string) (*plandomain.Plan, error) {
	p, err := s.plans.GetActive(ctx, planID)
	if errors.Is(err, plandomain.ErrPlanNotFound) {
		return nil, domain.NewValidationError("plan_id", "unknown plan")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return p, nil
}

// paymentKey is stable for one (registration, plan, attempt) so a retried request
// never authorizes twice, whatever token it carries. The raw reference never leaves
// the service.
func paymentKey(id, planID string, seq int) string {
	sum := sha256.Sum256([]byte(security.HashReference(id) + "|" + planID + "|" + strconv.Itoa(seq)))
	return hex.EncodeToString(sum[:16])
}
