package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() Request {
	return Request{IdempotencyKey: "idem-1", PlanID: "growth", AmountCents: 4900, Currency: "USD", Token: "tok_visa", CustomerEmail: "jane@example.com"}
}

func TestGatewayClient_Approved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authorizations", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		var body authorizeBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(4900), body.Amount)
		assert.Equal(t, "usd", body.Currency)
		assert.Equal(t, "tok_visa", body.Source)
		_ = json.NewEncoder(w).Encode(authorizeResponse{ID: "auth_123", Status: "approved", CreatedAt: 1767225600})
	}))
	defer srv.Close()

	auth, err := NewGatewayClient(srv.URL+"/", "sk_test").Authorize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "auth_123", auth.Reference)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), auth.AuthorizedAt)
}

func TestGatewayClient_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(authorizeResponse{ID: "auth_124", Status: "declined", DeclineReason: "insufficient_funds"})
	}))
	defer srv.Close()

	_, err := NewGatewayClient(srv.URL, "sk_test").Authorize(context.Background(), sampleRequest())
	var declined *DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "insufficient_funds", declined.Reason)
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestGatewayClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewGatewayClient(srv.URL, "sk_test").Authorize(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrGateway)
}

func TestGatewayClient_Unreachable(t *testing.T) {
	c := NewGatewayClient("http://127.0.0.1:1", "sk_test")
	c.HTTPClient.Timeout = 200 * time.Millisecond
	_, err := c.Authorize(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrGateway)
}

func TestSandboxAuthorizer(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := SandboxAuthorizer{Now: func() time.Time { return fixed }}
	ctx := context.Background()

	a1, err := s.Authorize(ctx, sampleRequest())
	require.NoError(t, err)
	a2, err := s.Authorize(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, a1.Reference, a2.Reference)
	assert.Equal(t, fixed, a1.AuthorizedAt)

	req := sampleRequest()
	req.Token = SandboxDeclineToken
	_, err = s.Authorize(ctx, req)
	assert.True(t, errors.Is(err, ErrDeclined))

	req.Token = SandboxUnavailableToken
	_, err = s.Authorize(ctx, req)
	assert.ErrorIs(t, err, ErrGateway)
}
