package matchhub_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pairgogo/backend/internal/matchhub"
	"pairgogo/backend/internal/models"
)

func TestPresenceRegisterAndLookup(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())
	sess := newMockSession("user_A")

	assert.False(t, presence.IsOnline("user_A"))

	presence.Register(sess)

	assert.True(t, presence.IsOnline("user_A"))
	assert.Equal(t, 1, presence.Count())
}

func TestPresenceSecondConnectionSupersedes(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())
	disconnects := 0
	presence.SetDisconnectHook(func(string) { disconnects++ })

	first := newMockSession("user_A")
	second := newMockSession("user_A")
	presence.Register(first)
	presence.Register(second)

	assert.True(t, first.Closed(), "the superseded session is closed")
	assert.False(t, second.Closed())
	assert.Equal(t, 0, disconnects, "superseding is not a disconnect")

	presence.DeliverLocal("user_A", models.Event{Type: models.EventSearchStarted})
	assert.Len(t, second.received(), 1, "delivery goes to the newest session")
	assert.Empty(t, first.received())

	// The stale session going away must not evict its replacement.
	assert.False(t, presence.UnregisterSession(first))
	assert.True(t, presence.IsOnline("user_A"))
	assert.Equal(t, 0, disconnects)
}

func TestPresenceUnregisterIdempotent(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())
	disconnects := 0
	presence.SetDisconnectHook(func(string) { disconnects++ })

	sess := newMockSession("user_A")
	presence.Register(sess)

	assert.True(t, presence.Unregister("user_A"))
	assert.False(t, presence.Unregister("user_A"))
	assert.False(t, presence.IsOnline("user_A"))
	assert.Equal(t, 1, disconnects, "the disconnect hook fires once")
}

func TestPresenceDeliverLocalOffline(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())

	delivered := presence.DeliverLocal("user_ghost", models.Event{Type: models.EventMatchFound})

	assert.False(t, delivered, "delivery to an offline user is a no-op, not an error")
}

// Deliveries racing a session teardown must never panic: the registry holds
// its read lock across the channel send, and sessions signal their pumps to
// stop without closing the send channel.
func TestPresenceDeliverDuringTeardown(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())

	for i := 0; i < 500; i++ {
		sess := matchhub.NewWebSocketSession("user_A", nil, nil, zap.NewNop())
		presence.Register(sess)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				presence.DeliverLocal("user_A", models.Event{Type: models.EventMatchFound})
			}()
		}
		presence.UnregisterSession(sess)
		wg.Wait()
	}
}

func TestPresenceDeliverLocalNeverBlocks(t *testing.T) {
	presence := matchhub.NewPresenceService(zap.NewNop())
	sess := &MockSession{userID: "user_A", RecvChannel: make(chan models.Event, 1)}
	presence.Register(sess)

	presence.DeliverLocal("user_A", models.Event{Type: models.EventMatchFound})
	// Buffer is full now; the next delivery is dropped instead of blocking.
	assert.True(t, presence.DeliverLocal("user_A", models.Event{Type: models.EventMatchExpired}))

	assert.Len(t, sess.received(), 1)
}
