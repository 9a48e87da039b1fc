// Package account serves the owner's view of a provisioned tenant: the user, the
// organization, its members, its subscription and recent audit activity.
package account

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/domain"
	membershipdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/domain"
	orgdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
	subscriptiondomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/domain"
	userdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/domain"
)

var (
	// ErrNotFound is returned when the user or organization of the token no longer exists.
	ErrNotFound = errors.New("account not found")
	// ErrNotMember is returned when the token's user has no membership in the token's organization.
	ErrNotMember = errors.New("user is not a member of the organization")
)

const recentActivityLimit = 20

type (
	UserReader interface {
		GetByID(ctx context.Context, id string) (*userdomain.User, error)
	}
	OrgReader interface {
		GetByID(ctx context.Context, id string) (*orgdomain.Org, error)
	}
	MembershipLister interface {
		ListByOrg(ctx context.Context, orgID string) ([]*membershipdomain.Membership, error)
	}
	SubscriptionReader interface {
		GetByOrg(ctx context.Context, orgID string) (*subscriptiondomain.Subscription, error)
	}
	AuditLister interface {
		ListByOrg(ctx context.Context, orgID string, limit int) ([]*auditdomain.AuditLog, error)
	}
)

// Repos groups the readers the service needs. Audit may be nil.
type Repos struct {
	Users         UserReader
	Orgs          OrgReader
	Memberships   MembershipLister
	Subscriptions SubscriptionReader
	Audit         AuditLister
}

// Service assembles account overviews.
type Service struct {
	repos Repos
}

// NewService returns a Service reading from repos.
func NewService(repos Repos) *Service {
	return &Service{repos: repos}
}

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Phone         string    `json:"phone_number"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Owner  bool   `json:"owner"`
}

type Subscription struct {
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	Status       string `json:"status"`
}

type Activity struct {
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Overview is the response of GET /api/v1/account.
type Overview struct {
	User         User          `json:"user"`
	Organization Organization  `json:"organization"`
	Role         string        `json:"role"`
	Members      []Member      `json:"members"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Activity     []Activity    `json:"recent_activity"`
}

// Overview returns the account of userID within orgID.
func (s *Service) Overview(ctx context.Context, userID, orgID string) (*Overview, error) {
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	o, err := s.repos.Orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if u == nil || o == nil {
		return nil, ErrNotFound
	}
	members, err := s.repos.Memberships.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := &Overview{
		User: User{
			ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Phone: u.Phone,
			EmailVerified: u.EmailVerified, PhoneVerified: u.PhoneVerified, CreatedAt: u.CreatedAt,
		},
		Organization: Organization{ID: o.ID, Name: o.Name, Slug: o.Slug, Status: string(o.Status), CreatedAt: o.CreatedAt},
		Members:      make([]Member, 0, len(members)),
		Activity:     []Activity{},
	}
	for _, m := range members {
		out.Members = append(out.Members, Member{UserID: m.UserID, Role: string(m.Role), Owner: m.IsOwner()})
		if m.UserID == userID {
			out.Role = string(m.Role)
		}
	}
	if out.Role == "" {
		return nil, ErrNotMember
	}

	sub, err := s.repos.Subscriptions.GetByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		out.Subscription = &Subscription{PlanID: sub.PlanID, BillingCycle: sub.BillingCycle, Status: string(sub.Status)}
	}

	if s.repos.Audit != nil {
		logs, err := s.repos.Audit.ListByOrg(ctx, orgID, recentActivityLimit)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			out.Activity = append(out.Activity, Activity{Action: l.Action, Resource: l.Resource, UserID: l.UserID, CreatedAt: l.CreatedAt})
		}
	}
	return out, nil
}
