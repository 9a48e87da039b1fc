package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one stage of the registration state machine. Steps are totally ordered;
// a registration's current step only ever moves forward.
type Step int

const (
	StepForm Step = iota
	StepVerify
	StepAccountSetup
	StepInterview
	StepPlan
	StepPayment
	StepCompleted
)

var stepNames = [...]string{
	StepForm:         "FORM",
	StepVerify:       "VERIFY",
	StepAccountSetup: "ACCOUNT_SETUP",
	StepInterview:    "INTERVIEW",
	StepPlan:         "PLAN",
	StepPayment:      "PAYMENT",
	StepCompleted:    "COMPLETED",
}

// Steps returns every step in canonical order.
func Steps() []Step {
	return []Step{StepForm, StepVerify, StepAccountSetup, StepInterview, StepPlan, StepPayment, StepCompleted}
}

// Valid reports whether s is one of the defined steps.
func (s Step) Valid() bool {
	return s >= StepForm && s <= StepCompleted
}

// Index returns the position of s in the canonical order.
func (s Step) Index() int { return int(s) }

// Next returns the step after s. COMPLETED is terminal and returns itself.
func (s Step) Next() Step {
	if s >= StepCompleted {
		return StepCompleted
	}
	return s + 1
}

func (s Step) String() string {
	if !s.Valid() {
		return "Step(" + strconv.Itoa(int(s)) + ")"
	}
	return stepNames[s]
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

// UnmarshalText accepts the forms understood by ParseStep.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStep accepts a step name (case-insensitive, '-' or '_' separated) or its index.
func ParseStep(raw string) (Step, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "-", "_")
	if n, err := strconv.Atoi(v); err == nil {
		s := Step(n)
		if !s.Valid() {
			return 0, fmt.Errorf("%w: unknown step %q", ErrValidation, raw)
		}
		return s, nil
	}
	for i, name := range stepNames {
		if name == v {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown step %q", ErrValidation, raw)
}
