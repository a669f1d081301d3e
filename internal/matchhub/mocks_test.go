package matchhub_test

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"pairgogo/backend/internal/models"
)

// MockStorage is a testify mock of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUserIfNotExists(telegramID string) (*models.User, error) {
	args := m.Called(telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) IsUserBanned(anonID string) (bool, error) {
	args := m.Called(anonID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SaveRoom(room *models.ChatRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) CloseRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetActiveRoomIDForUser(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) PublishEvent(env models.EventEnvelope) error {
	args := m.Called(env)
	return args.Error(0)
}

func (m *MockStorage) SubscribeEvents() *redis.PubSub {
	args := m.Called()
	return args.Get(0).(*redis.PubSub)
}

// captureDeliverer records every delivered event, for asserting on the
// outbound side of the scheduler and the proposal table.
type captureDeliverer struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func newCaptureDeliverer() *captureDeliverer {
	return &captureDeliverer{events: make(map[string][]models.Event)}
}

func (d *captureDeliverer) Deliver(userID string, ev models.Event) {
	d.mu.Lock()
	d.events[userID] = append(d.events[userID], ev)
	d.mu.Unlock()
}

func (d *captureDeliverer) eventsFor(userID string) []models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Event, len(d.events[userID]))
	copy(out, d.events[userID])
	return out
}

func (d *captureDeliverer) countOf(userID, eventType string) int {
	n := 0
	for _, ev := range d.eventsFor(userID) {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}
