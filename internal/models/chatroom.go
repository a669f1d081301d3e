package models

import "time"

// ChatRoom is the conversation channel created when a proposal is confirmed.
// The matchmaking core only creates and closes rooms; message history and
// everything inside a room belongs to the chat service.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// ProposalID links the room back to the proposal that produced it.
	ProposalID string `gorm:"uniqueIndex" json:"proposal_id"`
	// User1ID is the anonymous ID of the first participant.
	User1ID string `json:"user1_id"`
	// User2ID is the anonymous ID of the second participant.
	User2ID string `json:"user2_id"`
	// IsActive indicates whether the room is currently open.
	IsActive bool `json:"is_active"`
	// StartedAt is the timestamp when the room was created.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is the timestamp when the room was closed.
	EndedAt time.Time `json:"ended_at"`
}
