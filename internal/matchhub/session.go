package matchhub

import "pairgogo/backend/internal/models"

// Session is the interface for any type of live connection (e.g. WebSocket,
// Telegram). It abstracts the underlying transport, allowing the presence
// registry to manage different session types uniformly.
type Session interface {
	// GetUserID returns the anonymous user ID bound to this session.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	// It is a send-only channel; the session's write pump drains it.
	GetSendChannel() chan<- models.Event

	// Run starts the session's pumps (read/write goroutines as needed).
	Run()

	// Close shuts the session down. It must be safe to call more than once
	// (both a disconnect and a superseding registration may close a session)
	// and it must not close the send channel: deliveries racing teardown may
	// still be writing to it.
	Close()
}
