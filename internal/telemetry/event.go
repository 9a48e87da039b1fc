// Package telemetry describes registration funnel events and emits them best-effort.
package telemetry

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Funnel event types.
const (
	EventRegistrationStarted   = "registration_started"
	EventStepSubmitted         = "step_submitted"
	EventOTPSent               = "otp_sent"
	EventOTPVerified           = "otp_verified"
	EventOTPFailed             = "otp_failed"
	EventPaymentAuthorized     = "payment_authorized"
	EventPaymentDeclined       = "payment_declined"
	EventRegistrationFinalized = "registration_finalized"
	EventRegistrationAbandoned = "registration_abandoned"
)

// Event is one step of a registration through the funnel. RegistrationHash identifies the
// registration without exposing its session reference.
type Event struct {
	Type             string
	RegistrationHash string
	Step             string
	OrgID            string
	UserID           string
	Source           string
	Attributes       map[string]string
	CreatedAt        time.Time
}

// NewEvent returns an event stamped with now.
func NewEvent(eventType, registrationHash, step string, now time.Time) *Event {
	return &Event{
		Type:             eventType,
		RegistrationHash: registrationHash,
		Step:             step,
		Source:           "registration_service",
		CreatedAt:        now.UTC(),
	}
}

// With sets an attribute and returns the event.
func (e *Event) With(key, value string) *Event {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// Struct converts the event into a protobuf Struct with snake_case keys.
func (e *Event) Struct() (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"event_type":        e.Type,
		"registration_hash": e.RegistrationHash,
		"source":            e.Source,
		"created_at":        e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Step != "" {
		fields["step"] = e.Step
	}
	if e.OrgID != "" {
		fields["org_id"] = e.OrgID
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if len(e.Attributes) > 0 {
		attrs := make(map[string]interface{}, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		fields["attributes"] = attrs
	}
	return structpb.NewStruct(fields)
}

// Marshal encodes the event in protobuf wire format.
func (e *Event) Marshal() ([]byte, error) {
	s, err := e.Struct()
	if err != nil {
		return nil, fmt.Errorf("telemetry: build event: %w", err)
	}
	return proto.Marshal(s)
}

// Unmarshal decodes an event encoded by Marshal.
func Unmarshal(b []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("telemetry: decode event: %w", err)
	}
	m := s.AsMap()
	str := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	e := &Event{
		Type:             str("event_type"),
		RegistrationHash: str("registration_hash"),
		Step:             str("step"),
		OrgID:            str("org_id"),
		UserID:           str("user_id"),
		Source:           str("source"),
	}
	if t, err := time.Parse(time.RFC3339Nano, str("created_at")); err == nil {
		e.CreatedAt = t
	}
	if attrs, ok := m["attributes"].(map[string]interface{}); ok {
		for k, v := range attrs {
			if s, ok := v.(string); ok {
				e.With(k, s)
			}
		}
	}
	return e, nil
}
