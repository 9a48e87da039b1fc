package domain

import (
	"fmt"
	"strings"
	"time"
)

// OTPMethod is the channel a verification code is delivered through.
type OTPMethod string

const (
	MethodSMS   OTPMethod = "SMS"
	MethodEmail OTPMethod = "EMAIL"
)

// ParseOTPMethod normalizes and validates a delivery method.
func ParseOTPMethod(raw string) (OTPMethod, error) {
	switch m := OTPMethod(strings.ToUpper(strings.TrimSpace(raw))); m {
	case MethodSMS, MethodEmail:
		return m, nil
	}
	return "", fmt.Errorf("%w: method must be SMS or EMAIL", ErrValidation)
}

// OTPChallenge is the single live verification code of a registration.
// Only the SHA-256 hash of the code is kept.
type OTPChallenge struct {
	Method            OTPMethod `json:"method"`
	CodeHash          string    `json:"code_hash"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}

// Expired reports whether the code can no longer be used.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Exhausted reports whether all attempts were spent.
func (c *OTPChallenge) Exhausted() bool {
	return c.AttemptsRemaining <= 0
}

// CanResend reports whether a new code may be issued. An expired challenge never blocks a resend.
func (c *OTPChallenge) CanResend(now time.Time) bool {
	return c.Expired(now) || !now.Before(c.ResendAvailableAt)
}
