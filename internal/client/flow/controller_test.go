package flow

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/payment"
	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	planrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	reghandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
)

const cookieName = "reg_session"

type harness struct {
	srv   *httptest.Server
	codes *devotp.MemoryStore
	jar   *cookiejar.Jar
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	codes := devotp.NewMemoryStore()
	mat := repository.NewMemoryMaterializer()
	svc := service.New(service.DefaultConfig(), service.Deps{
		Store:        repository.NewMemoryStore(nil),
		Slugs:        repository.NewMemoryReserver(nil),
		Emails:       repository.NewMemoryReserver(nil),
		Materializer: mat,
		SlugLookup:   mat,
		Users:        mat,
		Plans:        planrepo.NewMemoryCatalog(plandomain.DefaultPlans()),
		Sender:       devotp.NewCaptureSender(codes),
		Payments:     payment.SandboxAuthorizer{},
		Hasher:       security.NewHasher(4),
	})
	r := gin.New()
	reghandler.NewHandler(svc, reghandler.CookieConfig{Name: cookieName, MaxAge: time.Hour}).Register(r.Group("/api/v1/registration"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, codes: codes, jar: jar}
}

// controller returns a fresh controller sharing the harness cookie jar, like a page reload.
func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()
	c, err := New(h.srv.URL, &http.Client{Jar: h.jar})
	require.NoError(t, err)
	return c
}

func (h *harness) reference(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	for _, c := range h.jar.Cookies(u) {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

var form = service.FormInput{
	FirstName:    "Ada",
	LastName:     "Lovelace",
	Email:        "ada@example.com",
	PhoneNumber:  "+15551234567",
	Password:     "analytical1",
	ConsentGiven: true,
}

func TestController_Wizard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.controller(t)

	st, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, st.Started)
	assert.Equal(t, domain.StepForm, c.Viewing())

	_, err = c.GoTo(ctx, domain.StepPlan)
	assert.ErrorIs(t, err, ErrNotReached)

	_, err = c.SubmitForm(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, domain.StepVerify, c.Viewing())

	// A reload forgets local state and reconciles with the server.
	c = h.controller(t)
	st, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, domain.StepVerify, c.Confirmed())

	ch, err := c.SendOTP(ctx, domain.MethodEmail)
	require.NoError(t, err)
	assert.Equal(t, "a***@example.com", ch.Destination)
	code, ok := h.codes.Get(ctx, h.reference(t))
	require.True(t, ok)
	_, err = c.VerifyOTP(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, domain.StepAccountSetup, c.Viewing())

	// Back to FORM, edit, and forward one step without losing progress.
	v, err := c.GoTo(ctx, domain.StepForm)
	require.NoError(t, err)
	require.NotNil(t, v.Form)
	assert.Equal(t, "ada@example.com", v.Form.Email)
	edit := form
	edit.FirstName, edit.Password = "Augusta", ""
	_, err = c.SubmitForm(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, domain.StepVerify, c.Viewing())
	assert.Equal(t, domain.StepAccountSetup, c.Confirmed())

	_, err = c.GoTo(ctx, domain.StepAccountSetup)
	require.NoError(t, err)
	free, err := c.CheckSlug(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, free)
	_, err = c.CreateAccount(ctx, service.AccountInput{Name: "Acme Inc", Slug: "acme"})
	require.NoError(t, err)
	assert.Equal(t, domain.StepInterview, c.Viewing())

	_, err = c.SaveAnswer(ctx, "company_size", "2-10")
	require.NoError(t, err)
	_, err = c.CompleteInterview(ctx, []service.AnswerInput{
		{Field: "industry", Value: "Publishing"},
		{Field: "primary_goal", Value: "sales"},
		{Field: "website_url", Value: "https://acme.example"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StepPlan, c.Viewing())

	plans, err := c.Plans(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	_, err = c.SelectPlan(ctx, plans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, c.Viewing())

	_, err = c.Pay(ctx, payment.SandboxDeclineToken)
	require.Error(t, err)
	assert.True(t, IsCode(err, "PAYMENT_DECLINED"))
	assert.Equal(t, domain.StepPayment, c.Viewing(), "a decline does not move the wizard")

	_, err = c.Pay(ctx, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, c.Confirmed())

	res, err := c.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Slug)
	assert.False(t, c.Started())
	assert.Empty(t, h.reference(t), "finalize clears the session cookie")
}

func TestController_ReconcilesStaleStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.controller(t)
	_, err := c.SubmitForm(ctx, form)
	require.NoError(t, err)

	c.confirmed = domain.StepPlan
	_, err = c.GoTo(ctx, domain.StepPlan)
	require.Error(t, err)
	assert.True(t, IsCode(err, "STEP_NOT_REACHED"))
	assert.Equal(t, domain.StepVerify, c.Confirmed())
	assert.Equal(t, domain.StepVerify, c.Viewing())
}

func TestController_ExpiredRegistrationRestarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	ref, err := security.NewReference()
	require.NoError(t, err)
	h.jar.SetCookies(u, []*http.Cookie{{Name: cookieName, Value: ref, Path: "/"}})

	c := h.controller(t)
	_, err = c.Sync(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, "REGISTRATION_EXPIRED"))
	assert.False(t, c.Started())
	assert.Equal(t, domain.StepForm, c.Viewing())

	st, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, st.Started)
}

func TestController_RateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.controller(t)
	_, err := c.SubmitForm(ctx, form)
	require.NoError(t, err)

	_, err = c.SendOTP(ctx, domain.MethodSMS)
	require.NoError(t, err)
	_, err = c.SendOTP(ctx, domain.MethodSMS)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, 60*time.Second, apiErr.RetryAfter())
}

func TestNew_RequiresJar(t *testing.T) {
	_, err := New("http://localhost", &http.Client{})
	assert.Error(t, err)
}
