// Package flow drives the registration wizard from a client. The server is the only
// authority on progress: the controller reconciles with it on load and after every
// error, and never moves forward on its own.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
)

const apiPath = "/api/v1/registration"

// Status is the server's answer to "what step am I on".
type Status struct {
	Started     bool              `json:"started"`
	Step        domain.Step       `json:"step"`
	CurrentStep domain.Step       `json:"current_step"`
	View        *service.StepView `json:"view,omitempty"`
}

// Controller is a single wizard session. It is not safe for concurrent use.
type Controller struct {
	base    *url.URL
	client  *http.Client
	started bool
	// confirmed is the server's current step: every step before it is complete.
	confirmed domain.Step
	// viewing is the step being rendered; always <= confirmed.
	viewing domain.Step
	view    *service.StepView
}

// New returns a controller for the API at baseURL. A nil client gets a fresh cookie jar;
// a supplied client must carry a jar so the session cookie survives between calls.
func New(baseURL string, client *http.Client) (*Controller, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("flow: base url: %w", err)
	}
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	if client.Jar == nil {
		return nil, fmt.Errorf("flow: http client needs a cookie jar")
	}
	return &Controller{base: u, client: client}, nil
}

// Started reports whether a registration exists server-side.
func (c *Controller) Started() bool { return c.started }

// Confirmed returns the server-confirmed current step.
func (c *Controller) Confirmed() domain.Step { return c.confirmed }

// Viewing returns the step to render.
func (c *Controller) Viewing() domain.Step { return c.viewing }

// View returns the last step view received, if any.
func (c *Controller) View() *service.StepView { return c.view }

// CanGoTo reports whether step may be rendered: any step up to the confirmed one.
func (c *Controller) CanGoTo(step domain.Step) bool {
	return step.Valid() && step <= c.confirmed
}

// Sync asks the server for the canonical step and renders it. Call it on load; the
// controller never trusts a step it remembered from an earlier session.
func (c *Controller) Sync(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return nil, err
	}
	c.started = st.Started
	c.confirmed = st.CurrentStep
	c.viewing = st.CurrentStep
	c.view = st.View
	return &st, nil
}

// GoTo renders an earlier (or the current) step with its stored values.
func (c *Controller) GoTo(ctx context.Context, step domain.Step) (*service.StepView, error) {
	if !c.CanGoTo(step) {
		return nil, fmt.Errorf("%w: %s (current %s)", ErrNotReached, step, c.confirmed)
	}
	if !c.started {
		c.viewing = step
		return nil, nil
	}
	var v service.StepView
	if err := c.do(ctx, http.MethodGet, "/steps/"+strings.ToLower(step.String()), nil, &v); err != nil {
		return nil, err
	}
	c.apply(&v)
	return &v, nil
}

// SubmitForm starts the registration or edits its FORM data.
func (c *Controller) SubmitForm(ctx context.Context, in service.FormInput) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/register", in)
}

// SendOTP requests a verification code for method (SMS or EMAIL).
func (c *Controller) SendOTP(ctx context.Context, method domain.OTPMethod) (*service.ChallengeView, error) {
	if !c.started {
		return nil, ErrNotStarted
	}
	var ch service.ChallengeView
	if err := c.do(ctx, http.MethodPost, "/otp/send", map[string]string{"method": string(method)}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// VerifyOTP submits the VERIFY step.
func (c *Controller) VerifyOTP(ctx context.Context, code string) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/otp/verify", service.VerifyInput{Code: code})
}

// CheckSlug reports whether slug is currently free. Advisory only; CreateAccount re-checks.
func (c *Controller) CheckSlug(ctx context.Context, slug string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodPost, "/account/check-slug", service.SlugInput{Slug: slug}, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// CreateAccount submits the ACCOUNT_SETUP step.
func (c *Controller) CreateAccount(ctx context.Context, in service.AccountInput) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/account/create", in)
}

// SaveAnswer stores one interview answer without completing the step.
func (c *Controller) SaveAnswer(ctx context.Context, field, value string) (*service.StepView, error) {
	var v service.StepView
	if err := c.do(ctx, http.MethodPut, "/interview/"+url.PathEscape(field), map[string]string{"value": value}, &v); err != nil {
		return nil, err
	}
	c.confirmed = v.CurrentStep
	c.view = &v
	return &v, nil
}

// CompleteInterview saves answers and completes the INTERVIEW step.
func (c *Controller) CompleteInterview(ctx context.Context, answers []service.AnswerInput) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/interview", service.InterviewInput{Answers: answers, Complete: true})
}

// Plans lists the plans offered at the PLAN step.
func (c *Controller) Plans(ctx context.Context) ([]plandomain.Plan, error) {
	var out struct {
		Plans []plandomain.Plan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, "/plans", nil, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// SelectPlan submits the PLAN step.
func (c *Controller) SelectPlan(ctx context.Context, planID string) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/plan", service.PlanInput{PlanID: planID})
}

// Pay submits the PAYMENT step with a gateway token.
func (c *Controller) Pay(ctx context.Context, token string) (*service.StepView, error) {
	return c.submit(ctx, http.MethodPost, "/payment", service.PaymentInput{Token: token})
}

// Finalize creates the account. The server clears the session cookie on success, and a
// replay reports AlreadyFinalized with the original identities.
func (c *Controller) Finalize(ctx context.Context) (*service.FinalizeResult, error) {
	var res service.FinalizeResult
	if err := c.do(ctx, http.MethodPost, "/finalize", nil, &res); err != nil {
		return nil, err
	}
	c.reset()
	return &res, nil
}

// Abandon discards the registration.
func (c *Controller) Abandon(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "", nil, nil); err != nil {
		return err
	}
	c.reset()
	return nil
}

// submit posts the rendered step. On success the controller moves to the step after
// the one submitted, never past the server's current step.
func (c *Controller) submit(ctx context.Context, method, path string, body any) (*service.StepView, error) {
	var v service.StepView
	if err := c.do(ctx, method, path, body, &v); err != nil {
		return nil, err
	}
	c.started = true
	c.confirmed = v.CurrentStep
	next := c.viewing.Next()
	if next > c.confirmed {
		next = c.confirmed
	}
	c.viewing = next
	c.view = &v
	return &v, nil
}

func (c *Controller) apply(v *service.StepView) {
	c.confirmed = v.CurrentStep
	c.viewing = v.Step
	c.view = v
}

func (c *Controller) reset() {
	c.started = false
	c.confirmed = domain.StepForm
	c.viewing = domain.StepForm
	c.view = nil
}

// do sends one request. Error responses are decoded into *APIError and fold the
// server's view of progress back into the controller.
func (c *Controller) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+apiPath+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("flow: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		envelope.Error = apiErr
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			apiErr.Code, apiErr.Message = "HTTP_ERROR", resp.Status
		}
		c.reconcile(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Controller) reconcile(e *APIError) {
	switch e.Code {
	case "REGISTRATION_EXPIRED":
		log.Debug().Msg("flow: registration expired; back to FORM")
		c.reset()
	case "STEP_NOT_REACHED":
		if e.CurrentStep != nil {
			c.confirmed = *e.CurrentStep
			c.viewing = *e.CurrentStep
		}
	}
}
