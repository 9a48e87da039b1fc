package domain

import "time"

// Actions written by the registration workflow. Request-level entries use the verb
// derived from the HTTP method instead (see audit.ParseRoute).
const (
	ActionRegistrationFinalized = "registration_finalized"
)

// AuditLog is one audit row. Metadata is a JSON object serialized as text.
type AuditLog struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
