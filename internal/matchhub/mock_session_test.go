package matchhub_test

import (
	"sync"

	"pairgogo/backend/internal/models"
)

// MockSession is an in-memory Session: whatever the hub delivers lands in
// RecvChannel.
type MockSession struct {
	userID      string
	RecvChannel chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockSession(userID string) *MockSession {
	return &MockSession{
		userID:      userID,
		RecvChannel: make(chan models.Event, 16),
	}
}

func (c *MockSession) GetUserID() string                   { return c.userID }
func (c *MockSession) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *MockSession) Run() {}

func (c *MockSession) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockSession) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received drains everything queued so far.
func (c *MockSession) received() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.RecvChannel:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// receivedOf drains and filters by event type.
func (c *MockSession) receivedOf(eventType string) []models.Event {
	var out []models.Event
	for _, ev := range c.received() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
