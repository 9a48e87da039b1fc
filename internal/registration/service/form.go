package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/policy/engine"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// FormInput is the FORM submission. Password may be left empty when editing an
// existing registration to keep the stored hash.
type FormInput struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	PhoneNumber  string `json:"phone_number" validate:"required,e164"`
	Password     string `json:"password" validate:"omitempty,password"`
	ConsentGiven bool   `json:"consent_given" validate:"required"`
}

func (in *FormInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
}

// SubmitForm starts a registration when id is empty, otherwise edits the FORM data
// of the live registration id. It returns the registration id and the view of its
// current step.
func (s *Service) SubmitForm(ctx context.Context, id string, in FormInput) (string, *StepView, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return "", nil, err
	}
	if id == "" {
		return s.start(ctx, in)
	}
	v, err := s.editForm(ctx, id, in)
	if err != nil {
		return "", nil, err
	}
	return id, v, nil
}

func (s *Service) start(ctx context.Context, in FormInput) (string, *StepView, error) {
	if in.Password == "" {
		return "", nil, domain.NewValidationError("password", "is required")
	}
	if err := s.checkPolicy(ctx, engine.SignupInput{Action: engine.ActionRegister, Email: in.Email, PhoneNumber: in.PhoneNumber}); err != nil {
		return "", nil, err
	}
	if err := s.checkEmail(ctx, in.Email); err != nil {
		return "", nil, err
	}
	hash, err := s.hasher.HashString(in.Password)
	if err != nil {
		return "", nil, err
	}
	id, err := s.newRef()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	if err := s.reserveEmail(ctx, in.Email, id, s.cfg.RegistrationTTL); err != nil {
		return "", nil, err
	}
	r := &domain.Registration{
		ID:           id,
		CurrentStep:  domain.StepForm,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		ConsentGiven: in.ConsentGiven,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.RegistrationTTL),
	}
	r.Advance(domain.StepForm)
	if err := s.store.Create(ctx, r); err != nil {
		s.releaseEmail(ctx, in.Email, id)
		return "", nil, storeErr(err)
	}
	log.Info().Str("registration", shortHash(id)).Msg("registration started")
	s.emit(telemetry.EventRegistrationStarted, r, now)
	return id, s.view(r, r.CurrentStep, now), nil
}

func (s *Service) editForm(ctx context.Context, id string, in FormInput) (*StepView, error) {
	now := s.now()
	cur, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if in.Email != cur.Email {
		if err := s.checkPolicy(ctx, engine.SignupInput{Action: engine.ActionRegister, Email: in.Email, PhoneNumber: in.PhoneNumber}); err != nil {
			return nil, err
		}
		if err := s.checkEmail(ctx, in.Email); err != nil {
			return nil, err
		}
	}
	var hash string
	if in.Password != "" {
		if hash, err = s.hasher.HashString(in.Password); err != nil {
			return nil, err
		}
	}
	// Reserving an email the registration already holds only refreshes it.
	if err := s.reserveEmail(ctx, in.Email, id, cur.ExpiresAt.Sub(now)); err != nil {
		return nil, err
	}
	stored := cur.Email
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		stored = r.Email
		if r.Verified() && in.Email != r.Email && r.VerifiedMethod == domain.MethodEmail {
			return fmt.Errorf("%w: the verified email cannot be changed", domain.ErrStepLocked)
		}
		if r.Verified() && in.PhoneNumber != r.PhoneNumber && r.VerifiedMethod == domain.MethodSMS {
			return fmt.Errorf("%w: the verified phone number cannot be changed", domain.ErrStepLocked)
		}
		// A live code stays bound to the contact it was sent to.
		if c := r.OTP; c != nil && in.Email != r.Email && c.Method == domain.MethodEmail {
			r.OTP = nil
		}
		if c := r.OTP; c != nil && in.PhoneNumber != r.PhoneNumber && c.Method == domain.MethodSMS {
			r.OTP = nil
		}
		r.FirstName = in.FirstName
		r.LastName = in.LastName
		r.Email = in.Email
		r.PhoneNumber = in.PhoneNumber
		r.ConsentGiven = in.ConsentGiven
		if hash != "" {
			r.PasswordHash = hash
		}
		r.Advance(domain.StepForm)
		return nil
	})
	if err != nil {
		if stored != in.Email {
			s.releaseEmail(ctx, in.Email, id)
		}
		return nil, err
	}
	if stored != in.Email {
		s.releaseEmail(ctx, stored, id)
	}
	s.emit(telemetry.EventStepSubmitted, r, now, "step", domain.StepForm.String())
	return s.view(r, r.CurrentStep, now), nil
}

// reserveEmail holds email for registration id so no other live registration can
// use it. It is a no-op without an email reserver.
func (s *Service) reserveEmail(ctx context.Context, email, id string, ttl time.Duration) error {
	if s.emails == nil {
		return nil
	}
	ok, err := s.emails.Reserve(ctx, email, id, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrEmailInUse
	}
	return nil
}

func (s *Service) releaseEmail(ctx context.Context, email, id string) {
	if s.emails == nil || email == "" {
		return
	}
	if err := s.emails.Release(ctx, email, id); err != nil {
		log.Warn().Err(err).Str("registration", shortHash(id)).Msg("email release failed; reservation will expire")
	}
}

func (s *Service) checkEmail(ctx context.Context, email string) error {
	if s.users == nil {
		return nil
	}
	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if taken {
		return domain.ErrEmailInUse
	}
	return nil
}

// Status returns the view of the registration's current step.
func (s *Service) Status(ctx context.Context, id string) (*StepView, error) {
	now := s.now()
	r, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	return s.view(r, r.CurrentStep, now), nil
}

// RequestStep returns the stored values of step. Steps ahead of the current one fail
// with a StepNotReachedError carrying the step to redirect to.
func (s *Service) RequestStep(ctx context.Context, id string, step domain.Step) (*StepView, error) {
	if !step.Valid() {
		return nil, domain.NewValidationError("step", "unknown step")
	}
	now := s.now()
	r, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if err := r.Require(step); err != nil {
		return nil, err
	}
	return s.view(r, step, now), nil
}

// Abandon discards a registration and frees its slug and email reservations. Unknown ids are a no-op.
func (s *Service) Abandon(ctx context.Context, id string) error {
	now := s.now()
	r, err := s.load(ctx, id, now)
	if err != nil {
		if errors.Is(err, domain.ErrRegistrationExpired) {
			return nil
		}
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeErr(err)
	}
	s.releaseSlug(ctx, r)
	s.releaseEmail(ctx, r.Email, r.ID)
	s.emit(telemetry.EventRegistrationAbandoned, r, now)
	return nil
}

func (s *Service) releaseSlug(ctx context.Context, r *domain.Registration) {
	if r.Account == nil || r.Account.Slug == "" || s.slugs == nil {
		return
	}
	if err := s.slugs.Release(ctx, r.Account.Slug, r.ID); err != nil {
		log.Warn().Err(err).Str("registration", shortHash(r.ID)).Msg("slug release failed; reservation will expire")
	}
}
