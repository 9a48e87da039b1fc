package domain

import (
	"errors"
	"time"
)

// Role is a member's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership links a user to an organization.
type Membership struct {
	ID        string
	UserID    string
	OrgID     string
	Role      Role
	CreatedAt time.Time
}

// IsOwner reports whether the membership carries the owner role.
func (m *Membership) IsOwner() bool { return m.Role == RoleOwner }

func (m *Membership) Validate() error {
	if m.UserID == "" || m.OrgID == "" {
		return errors.New("user id and org id are required")
	}
	switch m.Role {
	case RoleOwner, RoleAdmin, RoleMember:
		return nil
	default:
		return errors.New("unknown role")
	}
}
