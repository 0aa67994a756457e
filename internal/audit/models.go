package audit

import "time"

// Event is an append-only activity log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; a failed append never fails the operation it describes.
//
// Storage (Postgres): table audit_events, INSERT-only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the signed-in user, when known.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	AccountID      string `json:"account_id,omitempty" db:"account_id"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	AccountCreated      EventType = "account.created"
	AccountUpdated      EventType = "account.updated"
	AccountVerified     EventType = "account.verified"
	AccountActivated    EventType = "account.activated"
	AccountDeactivated  EventType = "account.deactivated"
	AccountDeleted      EventType = "account.deleted"
	AccountDisconnected EventType = "account.disconnected"

	LinkingStarted   EventType = "linking.started"
	LinkingSucceeded EventType = "linking.succeeded"
	LinkingCancelled EventType = "linking.cancelled"
	LinkingFailed    EventType = "linking.failed"

	ConversationArchived EventType = "conversation.archived"
)
