package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors for the registration workflow; the HTTP handler maps them to status codes.
var (
	ErrValidation          = errors.New("validation failed")
	ErrStepNotReached      = errors.New("step not reached")
	ErrStepLocked          = errors.New("step can no longer be edited")
	ErrSlugTaken           = errors.New("slug is already taken")
	ErrEmailInUse          = errors.New("email is already registered")
	ErrRateLimited         = errors.New("too many requests")
	ErrChallengeExpired    = errors.New("verification code expired")
	ErrAttemptsExhausted   = errors.New("verification attempts exhausted")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrNoActiveChallenge   = errors.New("no active verification code")
	ErrAlreadyVerified     = errors.New("contact already verified")
	ErrRegistrationExpired = errors.New("registration expired")
	ErrNotReady            = errors.New("registration is not ready to finalize")
	ErrAlreadyFinalized    = errors.New("registration already finalized")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrPaymentInProgress   = errors.New("a payment for this registration is already being processed")
	ErrPolicyDenied        = errors.New("rejected by signup policy")
	// ErrUnavailable marks transient infrastructure failures (storage, delivery gateway, payment gateway).
	// The client retries the same step; stored data is not lost.
	ErrUnavailable = errors.New("temporarily unavailable")
)

// ValidationError lists the offending fields of a payload.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Add records a field problem.
func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}

// OrNil returns nil when no field was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StepNotReachedError tells the caller where to redirect.
type StepNotReachedError struct {
	Requested Step
	Current   Step
}

func (e *StepNotReachedError) Error() string {
	return fmt.Sprintf("%s: requested %s, current %s", ErrStepNotReached, e.Requested, e.Current)
}

func (e *StepNotReachedError) Unwrap() error { return ErrStepNotReached }

// RateLimitedError carries how long the caller must wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// InvalidCodeError reports the attempts left on the challenge.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCode, e.AttemptsRemaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// PaymentDeclinedError carries the processor's decline reason.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return ErrPaymentDeclined.Error()
	}
	return ErrPaymentDeclined.Error() + ": " + e.Reason
}

func (e *PaymentDeclinedError) Unwrap() error { return ErrPaymentDeclined }
