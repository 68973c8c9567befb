package audit

import "time"

// Event is an immutable, append-only audit log record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block operator actions on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the subject of the operator token.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the client IP as resolved by the HTTP layer.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CallID     string `json:"call_id,omitempty" db:"call_id"`
	ContactID  string `json:"contact_id,omitempty" db:"contact_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallInitiated EventType = "call_initiated"
	EventTypeDirectDial    EventType = "direct_dial"
	EventTypeLeadCreated   EventType = "lead_created"
	EventTypeSMSSent       EventType = "sms_sent"
	EventTypeTokenIssued   EventType = "token_issued"
)

// Actor identifies who performed an action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
