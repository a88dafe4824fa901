package conversation

import "time"

// Conversation lifecycle statuses. A resolved conversation is immutable
// to the pipeline; new inbound traffic opens a fresh one.
const (
	StatusPending  = "pending"
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Conversation is the agent-facing thread for one identity within one
// instance.
type Conversation struct {
	ID            string
	ContactID     string
	GroupRef      string
	InstanceID    string
	OwnerID       string
	Status        string
	UnreadCount   int
	QueueID       string
	LastMessageAt time.Time
	UpdatedAt     time.Time
}
