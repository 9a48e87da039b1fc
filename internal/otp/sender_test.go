package otp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

type recordingSMS struct {
	phone, code string
}

func (r *recordingSMS) SendOTP(ctx context.Context, phone, code string) error {
	r.phone, r.code = phone, code
	return nil
}

type recordingMail struct {
	to, subject, body string
	err               error
}

func (r *recordingMail) SendMail(ctx context.Context, to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestDispatcher_RoutesByMethod(t *testing.T) {
	sms := &recordingSMS{}
	mail := &recordingMail{}
	d := NewDispatcher(sms, mail)
	ctx := context.Background()

	if err := d.Send(ctx, Message{Method: domain.MethodSMS, Destination: "+15550001111", Code: "123456", ExpiresIn: 10 * time.Minute}); err != nil {
		t.Fatalf("Send SMS: %v", err)
	}
	if sms.phone != "+15550001111" || sms.code != "123456" {
		t.Errorf("sms got phone=%q code=%q", sms.phone, sms.code)
	}

	if err := d.Send(ctx, Message{Method: domain.MethodEmail, Destination: "jane@example.com", Code: "654321", ExpiresIn: 5 * time.Minute}); err != nil {
		t.Fatalf("Send EMAIL: %v", err)
	}
	if mail.to != "jane@example.com" || !strings.Contains(mail.body, "654321") || !strings.Contains(mail.body, "5 minutes") {
		t.Errorf("mail got to=%q body=%q", mail.to, mail.body)
	}
}

func TestDispatcher_MissingChannel(t *testing.T) {
	d := NewDispatcher(nil, nil)
	err := d.Send(context.Background(), Message{Method: domain.MethodSMS})
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("Send without SMS channel = %v, want ErrNoChannel", err)
	}
	err = d.Send(context.Background(), Message{Method: domain.MethodEmail})
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("Send without email channel = %v, want ErrNoChannel", err)
	}
	if err := d.Send(context.Background(), Message{Method: "FAX"}); err == nil {
		t.Error("unknown method should fail")
	}
}

func TestDispatcher_PropagatesGatewayError(t *testing.T) {
	boom := errors.New("smtp down")
	d := NewDispatcher(nil, &recordingMail{err: boom})
	if err := d.Send(context.Background(), Message{Method: domain.MethodEmail, Destination: "a@b.co"}); !errors.Is(err, boom) {
		t.Errorf("Send = %v, want gateway error", err)
	}
}
