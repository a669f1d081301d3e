package matchhub

import (
	"go.uber.org/zap"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

// Deliverer pushes an event toward a user, wherever their session lives.
// Delivery is best-effort: an offline user misses the event and the caller
// never learns about it. Presence is advisory, not transactional.
type Deliverer interface {
	Deliver(userID string, ev models.Event)
}

// DeliveryService delivers locally when the user's session is on this node,
// and otherwise publishes to the cross-node Redis channel so the instance
// that does hold the session can forward it.
type DeliveryService struct {
	Presence *PresenceService
	Store    storage.Storage
	Logger   *zap.Logger
}

// NewDeliveryService constructs the delivery adapter. Store may be nil in
// single-node setups; remote fanout is then skipped.
func NewDeliveryService(presence *PresenceService, store storage.Storage, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{Presence: presence, Store: store, Logger: logger}
}

// Deliver implements Deliverer.
func (d *DeliveryService) Deliver(userID string, ev models.Event) {
	if d.Presence.DeliverLocal(userID, ev) {
		return
	}

	if d.Store == nil {
		return
	}
	env := models.EventEnvelope{TargetID: userID, Event: ev}
	if err := d.Store.PublishEvent(env); err != nil {
		d.Logger.Warn("failed to publish event for remote delivery",
			zap.String("user_id", userID), zap.String("event", ev.Type), zap.Error(err))
	}
}
