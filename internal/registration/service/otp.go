package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/policy/engine"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// VerifyInput is the code submitted at VERIFY.
type VerifyInput struct {
	Code string `json:"code" validate:"required,otpcode"`
}

// IssueOTP creates a new challenge for method, replacing any previous one, and
// dispatches the code. A resend inside the cooldown fails with a RateLimitedError.
// If dispatch fails the challenge is withdrawn and ErrUnavailable is returned.
func (s *Service) IssueOTP(ctx context.Context, id, rawMethod string) (*ChallengeView, error) {
	method, err := domain.ParseOTPMethod(rawMethod)
	if err != nil {
		return nil, domain.NewValidationError("method", "must be SMS or EMAIL")
	}
	now := s.now()
	cur, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkPolicy(ctx, engine.SignupInput{
		Action:      engine.ActionOTPSend,
		Email:       cur.Email,
		PhoneNumber: cur.PhoneNumber,
		Method:      strings.ToLower(string(method)),
	}); err != nil {
		return nil, err
	}

	code, err := otp.Generate(s.cfg.OTPDigits)
	if err != nil {
		return nil, err
	}
	codeHash := otp.Hash(code)
	challenge := domain.OTPChallenge{
		Method:            method,
		CodeHash:          codeHash,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.cfg.OTPTTL),
		AttemptsRemaining: s.cfg.OTPMaxAttempts,
		ResendAvailableAt: now.Add(s.cfg.ResendCooldown),
	}
	var destination string
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		destination = ""
		if err := r.Require(domain.StepVerify); err != nil {
			return err
		}
		if r.Verified() {
			return domain.ErrAlreadyVerified
		}
		if c := r.OTP; c != nil && !c.CanResend(now) {
			return &domain.RateLimitedError{RetryAfter: c.ResendAvailableAt.Sub(now)}
		}
		destination = r.Destination(method)
		if destination == "" {
			return domain.NewValidationError("method", "no contact on file for "+string(method))
		}
		c := challenge
		r.OTP = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.sender.Send(ctx, otp.Message{
		Method:         method,
		Destination:    destination,
		Code:           code,
		ExpiresIn:      s.cfg.OTPTTL,
		RegistrationID: id,
	})
	if err != nil {
		log.Error().Err(err).Str("registration", shortHash(id)).Str("method", string(method)).Msg("otp dispatch failed")
		s.withdrawChallenge(ctx, id, codeHash)
		return nil, fmt.Errorf("%w: code delivery failed", domain.ErrUnavailable)
	}
	s.emit(telemetry.EventOTPSent, r, now, "method", string(method))
	return &ChallengeView{
		Method:            method,
		Destination:       maskDestination(method, destination),
		ExpiresAt:         challenge.ExpiresAt,
		AttemptsRemaining: challenge.AttemptsRemaining,
		ResendAvailableAt: challenge.ResendAvailableAt,
	}, nil
}

// withdrawChallenge removes an undelivered challenge so the user can retry at once.
func (s *Service) withdrawChallenge(ctx context.Context, id, codeHash string) {
	_, err := s.update(ctx, id, s.now(), func(r *domain.Registration) error {
		if r.OTP != nil && r.OTP.CodeHash == codeHash {
			r.OTP = nil
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrRegistrationExpired) {
		log.Warn().Err(err).Str("registration", shortHash(id)).Msg("withdrawing undelivered otp failed")
	}
}

// VerifyOTP checks code against the live challenge. A wrong code spends one attempt
// and fails with an InvalidCodeError; a match marks the contact verified, clears the
// challenge and advances VERIFY to ACCOUNT_SETUP.
func (s *Service) VerifyOTP(ctx context.Context, id string, in VerifyInput) (*StepView, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := s.now()
	var (
		invalid *domain.InvalidCodeError
		method  domain.OTPMethod
	)
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		invalid = nil
		if err := r.Require(domain.StepVerify); err != nil {
			return err
		}
		c := r.OTP
		if c == nil {
			return domain.ErrNoActiveChallenge
		}
		if c.Expired(now) {
			return domain.ErrChallengeExpired
		}
		if c.Exhausted() {
			return domain.ErrAttemptsExhausted
		}
		if !otp.Equal(in.Code, c.CodeHash) {
			c.AttemptsRemaining--
			invalid = &domain.InvalidCodeError{AttemptsRemaining: c.AttemptsRemaining}
			return nil
		}
		verifiedAt := now
		method = c.Method
		r.OTP = nil
		r.VerifiedAt = &verifiedAt
		r.VerifiedMethod = method
		r.Advance(domain.StepVerify)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		s.emit(telemetry.EventOTPFailed, r, now, "attempts_remaining", fmt.Sprint(invalid.AttemptsRemaining))
		return nil, invalid
	}
	log.Info().Str("registration", shortHash(id)).Str("method", string(method)).Msg("contact verified")
	s.emit(telemetry.EventOTPVerified, r, now, "method", string(method))
	return s.view(r, r.CurrentStep, now), nil
}
