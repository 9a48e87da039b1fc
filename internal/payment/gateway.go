package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GatewayClient authorizes payments against an HTTP card gateway.
// The gateway is expected to answer POST {base}/authorizations with
// {"id": "...", "status": "approved"|"declined", "decline_reason": "..."}.
type GatewayClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type authorizeBody struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Source        string `json:"source"`
	Description   string `json:"description"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type authorizeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	DeclineReason string `json:"decline_reason"`
	CreatedAt     int64  `json:"created_at"`
}

// Authorize sends the authorization request. Declines come back as *DeclinedError.
func (c *GatewayClient) Authorize(ctx context.Context, req Request) (*Authorization, error) {
	body, err := json.Marshal(authorizeBody{
		Amount:        req.AmountCents,
		Currency:      strings.ToLower(req.Currency),
		Source:        req.Token,
		Description:   "subscription " + req.PlanID,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/authorizations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	var out authorizeResponse
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPaymentRequired {
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	switch out.Status {
	case "approved":
		at := time.Now().UTC()
		if out.CreatedAt > 0 {
			at = time.Unix(out.CreatedAt, 0).UTC()
		}
		return &Authorization{Reference: out.ID, AuthorizedAt: at}, nil
	case "declined":
		return nil, &DeclinedError{Reason: out.DeclineReason}
	default:
		return nil, fmt.Errorf("%w: unexpected status %q", ErrGateway, out.Status)
	}
}
