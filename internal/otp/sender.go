package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

// ErrNoChannel is returned when no sender is configured for a method.
var ErrNoChannel = errors.New("otp: delivery channel not configured")

// Message is one code to deliver.
type Message struct {
	Method      domain.OTPMethod
	Destination string
	Code        string
	ExpiresIn   time.Duration
	// RegistrationID lets capturing senders (dev mode) key the code; real channels ignore it.
	RegistrationID string
}

// Sender delivers a verification code. Delivery is fire-and-forget: a nil error
// means the gateway accepted the message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMSSender is implemented by SMS gateways. Gateways with an OTP template route
// take the bare code; the others render their own body.
type SMSSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// EmailSender is implemented by mail transports.
type EmailSender interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// Dispatcher routes a message to the channel matching its method.
type Dispatcher struct {
	SMS   SMSSender
	Email EmailSender
}

// NewDispatcher returns a Dispatcher over the given channels; either may be nil.
func NewDispatcher(sms SMSSender, email EmailSender) *Dispatcher {
	return &Dispatcher{SMS: sms, Email: email}
}

// Send implements Sender.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	switch msg.Method {
	case domain.MethodSMS:
		if d.SMS == nil {
			return ErrNoChannel
		}
		return d.SMS.SendOTP(ctx, msg.Destination, msg.Code)
	case domain.MethodEmail:
		if d.Email == nil {
			return ErrNoChannel
		}
		return d.Email.SendMail(ctx, msg.Destination, "Your verification code", Text(msg))
	default:
		return fmt.Errorf("otp: unsupported method %q", msg.Method)
	}
}

// Text renders the human-readable message body.
func Text(msg Message) string {
	minutes := int(msg.ExpiresIn.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes. Do not share it with anyone.", msg.Code, minutes)
}
