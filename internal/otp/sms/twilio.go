package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioClient sends verification codes as plain SMS through Twilio Messaging.
type TwilioClient struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioClient returns a Twilio sender authenticated with the account SID and auth token.
func NewTwilioClient(accountSID, authToken, fromNumber string) *TwilioClient {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioClient{api: client.Api, fromNumber: fromNumber}
}

// SendOTP sends code to phone (E.164).
func (t *TwilioClient) SendOTP(ctx context.Context, phone, code string) error {
	if t.fromNumber == "" {
		return fmt.Errorf("sms: twilio from number not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(t.fromNumber)
	params.SetBody(fmt.Sprintf("Your verification code is %s. Do not share it with anyone.", code))

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("sms: twilio send failed: %w", err)
	}
	return nil
}
