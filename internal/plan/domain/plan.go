package domain

import (
	"errors"
	"time"
)

// ErrPlanNotFound is returned when a plan id is unknown or inactive.
var ErrPlanNotFound = errors.New("plan not found")

// Billing cycles.
const (
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

// Plan is a purchasable subscription plan.
type Plan struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	PriceCents   int64     `json:"price_cents" yaml:"price_cents"`
	Currency     string    `json:"currency" yaml:"currency"`
	BillingCycle string    `json:"billing_cycle" yaml:"billing_cycle"`
	Active       bool      `json:"-" yaml:"active"`
	SortOrder    int       `json:"-" yaml:"sort_order"`
	CreatedAt    time.Time `json:"-" yaml:"-"`
}

// Validate checks the plan before it is stored.
func (p *Plan) Validate() error {
	if p.ID == "" || p.Name == "" {
		return errors.New("plan id and name are required")
	}
	if p.PriceCents < 0 {
		return errors.New("plan price must not be negative")
	}
	if len(p.Currency) != 3 {
		return errors.New("plan currency must be an ISO 4217 code")
	}
	switch p.BillingCycle {
	case BillingMonthly, BillingYearly:
	default:
		return errors.New("plan billing cycle must be monthly or yearly")
	}
	return nil
}

// DefaultPlans is the catalog seeded into a fresh database and served in memory mode.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "starter", Name: "Starter", PriceCents: 0, Currency: "USD", BillingCycle: BillingMonthly, Active: true, SortOrder: 1},
		{ID: "growth", Name: "Growth", PriceCents: 4900, Currency: "USD", BillingCycle: BillingMonthly, Active: true, SortOrder: 2},
		{ID: "scale", Name: "Scale", PriceCents: 49000, Currency: "USD", BillingCycle: BillingYearly, Active: true, SortOrder: 3},
	}
}
