// Package payment authorizes the first charge of a new subscription.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeclined is wrapped by DeclinedError.
	ErrDeclined = errors.New("payment declined")
	// ErrGateway is returned when the processor could not be reached or answered unexpectedly.
	ErrGateway = errors.New("payment gateway unavailable")
)

// DeclinedError carries the processor's decline reason.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	if e.Reason == "" {
		return ErrDeclined.Error()
	}
	return ErrDeclined.Error() + ": " + e.Reason
}

func (e *DeclinedError) Unwrap() error { return ErrDeclined }

// Request asks the processor to authorize an amount. IdempotencyKey must be stable
// across retries of the same attempt so a replay never authorizes twice.
type Request struct {
	IdempotencyKey string
	PlanID         string
	AmountCents    int64
	Currency       string
	Token          string
	CustomerEmail  string
}

// Authorization is an approved authorization.
type Authorization struct {
	Reference    string
	AuthorizedAt time.Time
}

// Authorizer is the payment processor.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (*Authorization, error)
}
