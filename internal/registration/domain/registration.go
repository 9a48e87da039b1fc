// Package domain holds the temporary registration record and the rules that
// govern how it moves through the onboarding steps.
package domain

import (
	"time"
)

// AccountDraft is the organization the registration will create.
type AccountDraft struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// InterviewAnswer is one answered onboarding question.
type InterviewAnswer struct {
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// PaymentAuthorization records an approved authorization from the payment processor.
type PaymentAuthorization struct {
	Reference    string    `json:"reference"`
	PlanID       string    `json:"plan_id"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	BillingCycle string    `json:"billing_cycle"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

// PaymentAttempt marks a gateway call in flight. Seq numbers attempts; it only
// moves on after a decline, so a retried call reuses the same idempotency key.
type PaymentAttempt struct {
	Seq       int       `json:"seq"`
	PlanID    string    `json:"plan_id"`
	StartedAt time.Time `json:"started_at"`
}

// Pending reports whether the attempt still blocks other submissions at now.
func (a *PaymentAttempt) Pending(now time.Time, hold time.Duration) bool {
	return a != nil && now.Before(a.StartedAt.Add(hold))
}

// Registration is an in-progress signup addressed by an opaque reference.
// CurrentStep is only ever advanced by the registration service.
type Registration struct {
	ID          string `json:"id"`
	Version     int64  `json:"version"`
	CurrentStep Step   `json:"current_step"`

	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	PasswordHash string `json:"password_hash"`
	ConsentGiven bool   `json:"consent_given"`

	OTP            *OTPChallenge `json:"otp,omitempty"`
	VerifiedMethod OTPMethod     `json:"verified_method,omitempty"`
	VerifiedAt     *time.Time    `json:"verified_at,omitempty"`

	Account          *AccountDraft         `json:"account,omitempty"`
	InterviewAnswers []InterviewAnswer     `json:"interview_answers,omitempty"`
	SelectedPlanID   string                `json:"selected_plan_id,omitempty"`
	Payment          *PaymentAuthorization `json:"payment,omitempty"`
	LastPaymentError string                `json:"last_payment_error,omitempty"`
	PaymentAttempt   *PaymentAttempt       `json:"payment_attempt,omitempty"`
	DeclinedPayments int                   `json:"declined_payments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the registration outlived its TTL. Expired records are inert.
func (r *Registration) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Reached reports whether step s may be read or edited.
func (r *Registration) Reached(s Step) bool {
	return s <= r.CurrentStep
}

// Require returns a StepNotReachedError when s is ahead of the current step.
func (r *Registration) Require(s Step) error {
	if !r.Reached(s) {
		return &StepNotReachedError{Requested: s, Current: r.CurrentStep}
	}
	return nil
}

// Advance moves to the step after from, but only when from is the current step.
// Submissions for earlier steps leave progress unchanged.
func (r *Registration) Advance(from Step) bool {
	if r.CurrentStep != from || from == StepCompleted {
		return false
	}
	r.CurrentStep = from.Next()
	return true
}

// Verified reports whether the OTP step was completed.
func (r *Registration) Verified() bool {
	return r.VerifiedAt != nil
}

// Destination returns the contact the OTP was sent to for method m.
func (r *Registration) Destination(m OTPMethod) string {
	if m == MethodSMS {
		return r.PhoneNumber
	}
	return r.Email
}

// Answer returns the stored answer for field.
func (r *Registration) Answer(field string) (string, bool) {
	for _, a := range r.InterviewAnswers {
		if a.Field == field {
			return a.Value, true
		}
	}
	return "", false
}

// SetAnswer stores value for field, replacing a previous answer in place.
// order lists the configured fields; answers are kept in that order.
func (r *Registration) SetAnswer(field, value string, at time.Time, order []string) {
	replaced := false
	for i := range r.InterviewAnswers {
		if r.InterviewAnswers[i].Field == field {
			r.InterviewAnswers[i].Value = value
			r.InterviewAnswers[i].AnsweredAt = at
			replaced = true
			break
		}
	}
	if !replaced {
		r.InterviewAnswers = append(r.InterviewAnswers, InterviewAnswer{Field: field, Value: value, AnsweredAt: at})
	}
	if len(order) == 0 {
		return
	}
	pos := make(map[string]int, len(order))
	for i, f := range order {
		pos[f] = i
	}
	sorted := make([]InterviewAnswer, 0, len(r.InterviewAnswers))
	for _, f := range order {
		for _, a := range r.InterviewAnswers {
			if a.Field == f {
				sorted = append(sorted, a)
			}
		}
	}
	for _, a := range r.InterviewAnswers {
		if _, known := pos[a.Field]; !known {
			sorted = append(sorted, a)
		}
	}
	r.InterviewAnswers = sorted
}

// MissingAnswers returns the fields of order that have no answer yet.
func (r *Registration) MissingAnswers(order []string) []string {
	var missing []string
	for _, f := range order {
		if v, ok := r.Answer(f); !ok || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// InterviewStarted reports whether any interview answer was saved.
func (r *Registration) InterviewStarted() bool {
	return len(r.InterviewAnswers) > 0
}

// Clone returns a deep copy so stores can hand out records without sharing state.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := *r
	if r.OTP != nil {
		otp := *r.OTP
		c.OTP = &otp
	}
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		c.VerifiedAt = &t
	}
	if r.Account != nil {
		a := *r.Account
		c.Account = &a
	}
	if r.Payment != nil {
		p := *r.Payment
		c.Payment = &p
	}
	if r.PaymentAttempt != nil {
		a := *r.PaymentAttempt
		c.PaymentAttempt = &a
	}
	if r.InterviewAnswers != nil {
		c.InterviewAnswers = append([]InterviewAnswer(nil), r.InterviewAnswers...)
	}
	return &c
}
