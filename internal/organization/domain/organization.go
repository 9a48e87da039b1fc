package domain

import (
	"errors"
	"regexp"
	"time"
)

// ErrSlugTaken is returned when an active organization already uses the slug.
var ErrSlugTaken = errors.New("slug already taken")

// ErrInvalidSlug is returned by ValidateSlug.
var ErrInvalidSlug = errors.New("slug must be 3-63 characters of lowercase letters, digits and hyphens")

// Organization is a tenant account.
type Org struct {
	ID        string
	Name      string
	Slug      string
	Status    OrgStatus
	CreatedAt time.Time
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,63}$`)

// ValidateSlug checks the slug's shape. It does not check availability.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// Validate validates the org for persistence.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if err := ValidateSlug(o.Slug); err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = OrgStatusActive
	}
	return nil
}
