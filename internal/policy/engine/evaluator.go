package engine

import (
	"context"
)

// Signup actions checked by the policy.
const (
	ActionRegister = "register"
	ActionOTPSend  = "otp_send"
)

// SignupInput is the document evaluated by the signup policy.
type SignupInput struct {
	Action      string
	Email       string
	PhoneNumber string
	// Method is the OTP delivery method ("sms" or "email") for ActionOTPSend.
	Method string
}

// Decision is the policy outcome. Reasons is empty when the action is allowed.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Evaluator evaluates signup policies using OPA or other engines.
type Evaluator interface {
	// EvaluateSignup returns whether the signup action may proceed.
	EvaluateSignup(ctx context.Context, in SignupInput) (Decision, error)
}
