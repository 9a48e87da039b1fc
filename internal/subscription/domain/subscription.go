package domain

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	// StatusPendingCapture means the payment was authorized but not yet captured.
	StatusPendingCapture Status = "pending_capture"
	StatusActive         Status = "active"
	StatusCanceled       Status = "canceled"
)

// Subscription binds an organization to a plan.
type Subscription struct {
	ID               string
	OrgID            string
	PlanID           string
	BillingCycle     string
	Status           Status
	PaymentReference string
	CreatedAt        time.Time
}

func (s *Subscription) Validate() error {
	if s.OrgID == "" || s.PlanID == "" {
		return errors.New("org id and plan id are required")
	}
	if s.BillingCycle == "" {
		return errors.New("billing cycle is required")
	}
	if s.Status == "" {
		s.Status = StatusPendingCapture
	}
	return nil
}
