package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit"
	auditrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/repository"
	membershipdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
	orgdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/server/middleware"
	subscriptiondomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/domain"
	userdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/domain"
)

type fakeRepos struct {
	users   map[string]*userdomain.User
	orgs    map[string]*orgdomain.Org
	members map[string][]*membershipdomain.Membership
	subs    map[string]*subscriptiondomain.Subscription
	err     error
}

type userReader struct{ f *fakeRepos }

func (r userReader) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	return r.f.users[id], r.f.err
}

type orgReader struct{ f *fakeRepos }

func (r orgReader) GetByID(_ context.Context, id string) (*orgdomain.Org, error) {
	return r.f.orgs[id], nil
}

type memberLister struct{ f *fakeRepos }

func (r memberLister) ListByOrg(_ context.Context, orgID string) ([]*membershipdomain.Membership, error) {
	return r.f.members[orgID], nil
}

type subReader struct{ f *fakeRepos }

func (r subReader) GetByOrg(_ context.Context, orgID string) (*subscriptiondomain.Subscription, error) {
	return r.f.subs[orgID], nil
}

func seeded() *fakeRepos {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeRepos{
		users: map[string]*userdomain.User{
			"user-1": {ID: "user-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", EmailVerified: true, CreatedAt: now},
			"user-2": {ID: "user-2", Email: "bob@example.com", FirstName: "Bob", LastName: "Jones", CreatedAt: now},
		},
		orgs: map[string]*orgdomain.Org{
			"org-1": {ID: "org-1", Name: "Acme", Slug: "acme", Status: orgdomain.OrgStatusActive, CreatedAt: now},
		},
		members: map[string][]*membershipdomain.Membership{
			"org-1": {{ID: "m-1", UserID: "user-1", OrgID: "org-1", Role: membershipdomain.RoleOwner}},
		},
		subs: map[string]*subscriptiondomain.Subscription{
			"org-1": {ID: "s-1", OrgID: "org-1", PlanID: "growth", BillingCycle: "monthly", Status: subscriptiondomain.StatusPendingCapture},
		},
	}
}

func newService(f *fakeRepos, logs auditrepo.Repository) *Service {
	repos := Repos{Users: userReader{f}, Orgs: orgReader{f}, Memberships: memberLister{f}, Subscriptions: subReader{f}}
	if logs != nil {
		repos.Audit = logs
	}
	return NewService(repos)
}

func TestOverview(t *testing.T) {
	logs := auditrepo.NewMemoryRepository()
	audit.NewLogger(logs, nil).LogEvent(context.Background(), "org-1", "user-1", "registration_finalized", audit.ResourceRegistration, "")
	svc := newService(seeded(), logs)

	ov, err := svc.Overview(context.Background(), "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "owner", ov.Role)
	assert.Equal(t, "acme", ov.Organization.Slug)
	require.Len(t, ov.Members, 1)
	assert.True(t, ov.Members[0].Owner)
	require.NotNil(t, ov.Subscription)
	assert.Equal(t, "pending_capture", ov.Subscription.Status)
	require.Len(t, ov.Activity, 1)
	assert.Equal(t, "registration_finalized", ov.Activity[0].Action)
}

func TestOverview_Errors(t *testing.T) {
	f := seeded()
	svc := newService(f, nil)

	_, err := svc.Overview(context.Background(), "ghost", "org-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Overview(context.Background(), "user-2", "org-1")
	assert.ErrorIs(t, err, ErrNotMember)

	f.err = errors.New("db down")
	_, err = svc.Overview(context.Background(), "user-1", "org-1")
	assert.EqualError(t, err, "db down")
}

func TestHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	r := gin.New()
	NewHandler(newService(seeded(), nil)).Register(r.Group("/api/v1/account", middleware.Auth(tokens)))

	call := func(userID string) *httptest.ResponseRecorder {
		token, _, err := tokens.IssueOwnerAccess(userID, "org-1", "acme", "owner")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := call("user-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "owner", body["role"])
	assert.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])

	assert.Equal(t, http.StatusForbidden, call("user-2").Code)
	assert.Equal(t, http.StatusNotFound, call("ghost").Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/account", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
