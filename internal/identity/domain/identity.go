package domain

import (
	"errors"
	"time"
)

// IdentityProvider is the kind of credential an identity carries.
type IdentityProvider string

// IdentityProviderLocal is an email + password credential, the only kind registration creates.
const IdentityProviderLocal IdentityProvider = "local"

// Identity links a user to a way of signing in. Registration creates a local identity keyed by email.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
}

// Validate checks the identity before it is persisted.
func (i *Identity) Validate() error {
	if i.UserID == "" || i.ProviderID == "" {
		return errors.New("user id and provider id are required")
	}
	if i.Provider != IdentityProviderLocal {
		return errors.New("unknown identity provider")
	}
	if i.PasswordHash == "" {
		return errors.New("local identity requires a password hash")
	}
	return nil
}
