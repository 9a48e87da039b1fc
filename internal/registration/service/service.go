// Package service implements the server-authoritative onboarding workflow: every
// step submission is validated here and only this package advances a registration.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/interview"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/payment"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/policy/engine"
	planrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// Config holds the workflow limits.
type Config struct {
	RegistrationTTL time.Duration
	OTPTTL          time.Duration
	OTPDigits       int
	OTPMaxAttempts  int
	ResendCooldown  time.Duration
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RegistrationTTL: 24 * time.Hour,
		OTPTTL:          10 * time.Minute,
		OTPDigits:       otp.DefaultDigits,
		OTPMaxAttempts:  3,
		ResendCooldown:  60 * time.Second,
	}
}

// SlugLookup reports whether a permanent organization already owns a slug.
type SlugLookup interface {
	ActiveSlugExists(ctx context.Context, slug string) (bool, error)
}

// UserLookup reports whether a permanent user already owns an email.
type UserLookup interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// PasswordHasher hashes the password chosen at FORM.
type PasswordHasher interface {
	HashString(password string) (string, error)
}

// TokenIssuer issues the owner access token returned by Finalize.
type TokenIssuer interface {
	IssueOwnerAccess(userID, orgID, slug, role string) (string, time.Time, error)
}

// Deps are the collaborators of the Service. Emails, Tokens, Policy, Audit and Events are optional;
// without Emails, duplicate emails are only caught against permanent users.
type Deps struct {
	Store        repository.Store
	Slugs        repository.Reserver
	Emails       repository.Reserver
	Materializer repository.Materializer
	SlugLookup   SlugLookup
	Users        UserLookup
	Plans        planrepo.Catalog
	Interview    *interview.Catalog
	Sender       otp.Sender
	Payments     payment.Authorizer
	Hasher       PasswordHasher
	Tokens       TokenIssuer
	Policy       engine.Evaluator
	Audit        audit.AuditLogger
	Events       telemetry.EventEmitter
}

// Service drives registrations from FORM to Finalize.
type Service struct {
	cfg          Config
	store        repository.Store
	slugs        repository.Reserver
	emails       repository.Reserver
	materializer repository.Materializer
	slugLookup   SlugLookup
	users        UserLookup
	plans        planrepo.Catalog
	questions    *interview.Catalog
	sender       otp.Sender
	payments     payment.Authorizer
	hasher       PasswordHasher
	tokens       TokenIssuer
	policy       engine.Evaluator
	audit        audit.AuditLogger
	events       telemetry.EventEmitter

	now    func() time.Time
	newRef func() (string, error)
}

// New returns a Service. A nil Interview catalog uses the embedded default questionnaire.
func New(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.RegistrationTTL <= 0 {
		cfg.RegistrationTTL = def.RegistrationTTL
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = def.OTPTTL
	}
	if cfg.OTPDigits <= 0 {
		cfg.OTPDigits = def.OTPDigits
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = def.OTPMaxAttempts
	}
	if cfg.ResendCooldown < 0 {
		cfg.ResendCooldown = 0
	}
	questions := deps.Interview
	if questions == nil {
		questions = interview.Default()
	}
	return &Service{
		cfg:          cfg,
		store:        deps.Store,
		slugs:        deps.Slugs,
		emails:       deps.Emails,
		materializer: deps.Materializer,
		slugLookup:   deps.SlugLookup,
		users:        deps.Users,
		plans:        deps.Plans,
		questions:    questions,
		sender:       deps.Sender,
		payments:     deps.Payments,
		hasher:       deps.Hasher,
		tokens:       deps.Tokens,
		policy:       deps.Policy,
		audit:        deps.Audit,
		events:       deps.Events,
		now:          func() time.Time { return time.Now().UTC() },
		newRef:       security.NewReference,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Questions returns the interview catalog in use.
func (s *Service) Questions() *interview.Catalog {
	return s.questions
}

// load fetches a live registration. Missing and expired records both read as expired.
func (s *Service) load(ctx context.Context, id string, now time.Time) (*domain.Registration, error) {
	if !security.ValidReference(id) {
		return nil, domain.ErrRegistrationExpired
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if r.Expired(now) {
		return nil, domain.ErrRegistrationExpired
	}
	return r, nil
}

// update applies fn to a live registration. fn runs against the latest stored
// version and may be re-run, so it must not perform I/O.
func (s *Service) update(ctx context.Context, id string, now time.Time, fn repository.UpdateFunc) (*domain.Registration, error) {
	if !security.ValidReference(id) {
		return nil, domain.ErrRegistrationExpired
	}
	r, err := s.store.Update(ctx, id, func(r *domain.Registration) error {
		if r.Expired(now) {
			return domain.ErrRegistrationExpired
		}
		if err := fn(r); err != nil {
			return err
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return r, nil
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrRegistrationExpired
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return err
}

// checkPolicy runs the signup policy; a missing evaluator allows everything.
func (s *Service) checkPolicy(ctx context.Context, in engine.SignupInput) error {
	if s.policy == nil {
		return nil
	}
	dec, err := s.policy.EvaluateSignup(ctx, in)
	if err != nil {
		log.Warn().Err(err).Str("action", in.Action).Msg("signup policy evaluation failed; allowing")
		return nil
	}
	if !dec.Allowed {
		if len(dec.Reasons) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, dec.Reasons[0])
		}
		return domain.ErrPolicyDenied
	}
	return nil
}

func (s *Service) emit(eventType string, r *domain.Registration, now time.Time, attrs ...string) {
	if s.events == nil || r == nil {
		return
	}
	ev := telemetry.NewEvent(eventType, security.HashReference(r.ID), r.CurrentStep.String(), now)
	for i := 0; i+1 < len(attrs); i += 2 {
		ev.With(attrs[i], attrs[i+1])
	}
	telemetry.EmitAsync(s.events, ev)
}

func (s *Service) logAudit(ctx context.Context, orgID, userID, action, metadata string) {
	if s.audit == nil {
		return
	}
	if orgID == "" {
		orgID = audit.SentinelOrgID
	}
	s.audit.LogEvent(ctx, orgID, userID, action, audit.ResourceRegistration, metadata)
}

// shortHash is the registration identifier written to logs.
func shortHash(id string) string {
	h := security.HashReference(id)
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
