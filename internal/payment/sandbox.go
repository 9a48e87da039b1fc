package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Sandbox tokens with special behaviour. Any other non-empty token is approved.
const (
	SandboxDeclineToken     = "tok_decline"
	SandboxUnavailableToken = "tok_unavailable"
)

// SandboxAuthorizer approves payments without a processor, for development and tests.
// References derive from the idempotency key, so a retry returns the same reference.
type SandboxAuthorizer struct {
	Now func() time.Time
}

func (s SandboxAuthorizer) Authorize(_ context.Context, req Request) (*Authorization, error) {
	switch {
	case strings.HasPrefix(req.Token, SandboxDeclineToken):
		return nil, &DeclinedError{Reason: "card_declined"}
	case req.Token == SandboxUnavailableToken:
		return nil, ErrGateway
	case req.Token == "":
		return nil, &DeclinedError{Reason: "missing_payment_method"}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	sum := sha256.Sum256([]byte(req.IdempotencyKey))
	return &Authorization{Reference: "sbx_" + hex.EncodeToString(sum[:8]), AuthorizedAt: now().UTC()}, nil
}
