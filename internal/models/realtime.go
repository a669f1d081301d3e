package models

import "time"

// Event type names sent to clients over their live connection.
const (
	EventMatchFound     = "match:found"
	EventMatchConfirmed = "match:confirmed"
	EventMatchRejected  = "match:rejected"
	EventMatchExpired   = "match:expired"
	EventSearchStarted  = "search:started"
	EventError          = "error"
)

// Inbound command actions accepted from clients.
const (
	ActionStartSearch  = "search:start"
	ActionCancelSearch = "search:cancel"
	ActionDecision     = "decision"
)

// Event is the payload delivered to a client over its live connection.
// Delivery is best-effort: an offline user simply misses the event.
type Event struct {
	Type        string `json:"type"`
	ProposalID  string `json:"proposal_id,omitempty"`
	Counterpart string `json:"counterpart,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Command is an inbound frame from a client session.
type Command struct {
	Action       string   `json:"action"`
	ProposalID   string   `json:"proposal_id,omitempty"`
	Accept       bool     `json:"accept,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	TargetGender string   `json:"target_gender,omitempty"`
}

// SearchCriteria describes what a searching user is looking for.
// An empty Gender or TargetGender means "any".
type SearchCriteria struct {
	Interests    []string
	Gender       string
	TargetGender string
}

// SearchingUser is one entry in the candidate pool.
type SearchingUser struct {
	UserID     string
	Criteria   SearchCriteria
	EnqueuedAt time.Time
}

// EventEnvelope wraps an Event with its target user for cross-node fanout
// over Redis Pub/Sub.
type EventEnvelope struct {
	TargetID string `json:"target_id"`
	Event    Event  `json:"event"`
}
