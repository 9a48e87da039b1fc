package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

var (
	// ErrNotReached is returned by GoTo for a step beyond the server-confirmed step.
	ErrNotReached = errors.New("flow: step not reached yet")
	// ErrNotStarted is returned by operations that need a registration before FORM was submitted.
	ErrNotStarted = errors.New("flow: no registration in progress")
)

// APIError is a decoded error response of the registration API.
type APIError struct {
	Status            int               `json:"-"`
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	Fields            map[string]string `json:"fields,omitempty"`
	CurrentStep       *domain.Step      `json:"current_step,omitempty"`
	AttemptsRemaining *int              `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
	Reason            string            `json:"reason,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// RetryAfter is the wait before another code can be requested.
func (e *APIError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
