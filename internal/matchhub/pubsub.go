package matchhub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"pairgogo/backend/internal/models"
)

// RunEventFanout listens on the cross-node Redis channel and forwards
// events whose target holds a session on this node. Another instance
// published them because the user was not local there.
func (s *Service) RunEventFanout(ctx context.Context) {
	if s.store == nil {
		return
	}

	pubsub := s.store.SubscribeEvents()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env models.EventEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.Warn("bad event envelope on fanout channel", zap.Error(err))
				continue
			}
			// Only the node holding the session forwards; everyone else
			// ignores the envelope.
			s.Presence.DeliverLocal(env.TargetID, env.Event)
		}
	}
}
