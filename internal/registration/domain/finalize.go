package domain

import "time"

// Finalization is the permanent result of a consumed registration.
// It is stored in a ledger keyed by the registration hash so a replayed Finalize
// returns the same identities.
type Finalization struct {
	RegistrationHash string    `json:"-"`
	UserID           string    `json:"user_id"`
	OrgID            string    `json:"org_id"`
	MembershipID     string    `json:"membership_id"`
	SubscriptionID   string    `json:"subscription_id"`
	Slug             string    `json:"slug"`
	FinalizedAt      time.Time `json:"finalized_at"`
}

// FinalizeRequest is what the materializer needs to create the permanent entities.
type FinalizeRequest struct {
	Registration     *Registration
	RegistrationHash string
	BillingCycle     string
	Now              time.Time
}

// ReadyToFinalize reports whether every precondition for Finalize holds.
func (r *Registration) ReadyToFinalize() bool {
	return r.CurrentStep >= StepPayment &&
		r.Payment != nil &&
		r.Verified() &&
		r.Account != nil &&
		r.SelectedPlanID != "" &&
		r.Payment.PlanID == r.SelectedPlanID
}
