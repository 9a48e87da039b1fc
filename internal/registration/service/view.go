package service

import (
	"strings"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/interview"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

// FormView is the stored FORM data. The password is never echoed back.
type FormView struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	ConsentGiven bool   `json:"consent_given"`
}

// ChallengeView describes the live verification code without revealing it.
type ChallengeView struct {
	Method            domain.OTPMethod `json:"method"`
	Destination       string           `json:"destination"`
	ExpiresAt         time.Time        `json:"expires_at"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	ResendAvailableAt time.Time        `json:"resend_available_at"`
}

// VerificationView is the VERIFY step state.
type VerificationView struct {
	Verified       bool             `json:"verified"`
	VerifiedMethod domain.OTPMethod `json:"verified_method,omitempty"`
	Challenge      *ChallengeView   `json:"challenge,omitempty"`
}

// InterviewView lists the questions with any saved answers.
type InterviewView struct {
	Questions []interview.Question     `json:"questions"`
	Answers   []domain.InterviewAnswer `json:"answers"`
	Missing   []string                 `json:"missing"`
}

// PlanView is the PLAN step state.
type PlanView struct {
	SelectedPlanID string `json:"selected_plan_id,omitempty"`
	Locked         bool   `json:"locked"`
}

// PaymentView is the PAYMENT step state.
type PaymentView struct {
	PlanID       string     `json:"plan_id"`
	Authorized   bool       `json:"authorized"`
	AmountCents  int64      `json:"amount_cents,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// StepView is what a client renders for one step. Exactly one section is set.
type StepView struct {
	Step        domain.Step `json:"step"`
	CurrentStep domain.Step `json:"current_step"`
	ExpiresAt   time.Time   `json:"expires_at"`

	Form         *FormView            `json:"form,omitempty"`
	Verification *VerificationView    `json:"verification,omitempty"`
	Account      *domain.AccountDraft `json:"account,omitempty"`
	Interview    *InterviewView       `json:"interview,omitempty"`
	Plan         *PlanView            `json:"plan,omitempty"`
	Payment      *PaymentView         `json:"payment,omitempty"`
}

func (s *Service) view(r *domain.Registration, step domain.Step, now time.Time) *StepView {
	v := &StepView{Step: step, CurrentStep: r.CurrentStep, ExpiresAt: r.ExpiresAt}
	switch step {
	case domain.StepForm:
		v.Form = &FormView{
			FirstName:    r.FirstName,
			LastName:     r.LastName,
			Email:        r.Email,
			PhoneNumber:  r.PhoneNumber,
			ConsentGiven: r.ConsentGiven,
		}
	case domain.StepVerify:
		v.Verification = &VerificationView{Verified: r.Verified(), VerifiedMethod: r.VerifiedMethod}
		if c := r.OTP; c != nil && !c.Expired(now) {
			v.Verification.Challenge = &ChallengeView{
				Method:            c.Method,
				Destination:       maskDestination(c.Method, r.Destination(c.Method)),
				ExpiresAt:         c.ExpiresAt,
				AttemptsRemaining: c.AttemptsRemaining,
				ResendAvailableAt: c.ResendAvailableAt,
			}
		}
	case domain.StepAccountSetup:
		v.Account = &domain.AccountDraft{}
		if r.Account != nil {
			*v.Account = *r.Account
		}
	case domain.StepInterview:
		answers := r.InterviewAnswers
		if answers == nil {
			answers = []domain.InterviewAnswer{}
		}
		missing := r.MissingAnswers(s.questions.Fields())
		if missing == nil {
			missing = []string{}
		}
		v.Interview = &InterviewView{Questions: s.questions.Questions(), Answers: answers, Missing: missing}
	case domain.StepPlan:
		v.Plan = &PlanView{SelectedPlanID: r.SelectedPlanID, Locked: r.Payment != nil}
	case domain.StepPayment:
		v.Payment = &PaymentView{PlanID: r.SelectedPlanID, LastError: r.LastPaymentError}
		if p := r.Payment; p != nil {
			at := p.AuthorizedAt
			v.Payment.Authorized = true
			v.Payment.AmountCents = p.AmountCents
			v.Payment.Currency = p.Currency
			v.Payment.AuthorizedAt = &at
		}
	}
	return v
}

// maskDestination hides most of an email local part or phone number.
func maskDestination(m domain.OTPMethod, dest string) string {
	if m == domain.MethodEmail {
		at := strings.LastIndexByte(dest, '@')
		if at <= 0 {
			return "***"
		}
		return dest[:1] + "***" + dest[at:]
	}
	if len(dest) <= 4 {
		return "***"
	}
	return dest[:2] + strings.Repeat("*", len(dest)-5) + dest[len(dest)-3:]
}
