package domain

import (
	"errors"
	"time"
)

// ErrEmailTaken is returned when another user already owns the email address.
var ErrEmailTaken = errors.New("email already registered")

// User is the durable identity created when a registration is finalized.
type User struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	Status        UserStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.FirstName == "" || u.LastName == "" {
		return errors.New("first and last name are required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
