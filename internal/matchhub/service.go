package matchhub

import (
	"go.uber.org/zap"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

// Service is the inbound surface of the matchmaking engine. Session
// transports (WebSocket, Telegram) call it; it coordinates the presence
// registry, the candidate pool, the proposal table and the scheduler.
type Service struct {
	Presence  *PresenceService
	Pool      *CandidatePool
	Proposals *ProposalService
	Scheduler *SchedulerService
	Deliver   Deliverer

	store  storage.Storage
	logger *zap.Logger
}

// Stats is a point-in-time view for the introspection endpoint.
type Stats struct {
	Online        int `json:"online"`
	Searching     int `json:"searching"`
	LiveProposals int `json:"live_proposals"`
}

// NewService wires the matchmaking engine together. The presence registry's
// disconnect hook is installed here: a dropped session cancels the user's
// search and implicitly rejects their live proposal.
func NewService(store storage.Storage, cfg config.MatchConfig, logger *zap.Logger) *Service {
	presence := NewPresenceService(logger)
	pool := NewCandidatePool()
	deliver := NewDeliveryService(presence, store, logger)
	proposals := NewProposalService(pool, deliver, store, presence, cfg, logger)
	scheduler := NewSchedulerService(pool, proposals, deliver, cfg, logger)

	s := &Service{
		Presence:  presence,
		Pool:      pool,
		Proposals: proposals,
		Scheduler: scheduler,
		Deliver:   deliver,
		store:     store,
		logger:    logger,
	}
	presence.SetDisconnectHook(s.handleDisconnected)
	return s
}

// StartSearch puts the user into the candidate pool. Rejected for banned
// users, users already searching, and users with a live proposal pending a
// decision.
func (s *Service) StartSearch(userID string, criteria models.SearchCriteria) error {
	if s.store != nil {
		banned, err := s.store.IsUserBanned(userID)
		if err != nil {
			// The ban store being down must not take matchmaking with it.
			s.logger.Warn("ban check failed, allowing search",
				zap.String("user_id", userID), zap.Error(err))
		} else if banned {
			return ErrUserBanned
		}
	}

	if s.Proposals.HasLive(userID) {
		return ErrAlreadyQueued
	}

	if err := s.Pool.Enqueue(userID, criteria); err != nil {
		return err
	}

	s.Scheduler.Wake()
	s.Deliver.Deliver(userID, models.Event{Type: models.EventSearchStarted})

	s.logger.Info("search started",
		zap.String("user_id", userID),
		zap.Strings("interests", criteria.Interests))
	return nil
}

// CancelSearch removes the user from the pool. No effect on an already
// created proposal; that has to go through a decision or a disconnect.
func (s *Service) CancelSearch(userID string) bool {
	removed := s.Pool.Dequeue(userID)
	if removed {
		s.logger.Info("search cancelled", zap.String("user_id", userID))
	}
	return removed
}

// SubmitDecision forwards an accept/reject to the proposal table.
func (s *Service) SubmitDecision(proposalID, userID string, accept bool) error {
	_, err := s.Proposals.SubmitDecision(proposalID, userID, accept)
	return err
}

// HandleConnect registers a session and starts its pumps.
func (s *Service) HandleConnect(sess Session) {
	s.Presence.Register(sess)
	sess.Run()
}

// HandleDisconnect tears the session down if it is still the current one
// for its user. The registry's disconnect hook does the cleanup.
func (s *Service) HandleDisconnect(sess Session) {
	s.Presence.UnregisterSession(sess)
}

// handleDisconnected is the presence disconnect hook: cancel any search,
// implicitly reject any live proposal, and close an active chat room.
func (s *Service) handleDisconnected(userID string) {
	s.Pool.Dequeue(userID)
	s.Proposals.RejectByDisconnect(userID)

	if s.store == nil {
		return
	}
	roomID, err := s.store.GetActiveRoomIDForUser(userID)
	if err != nil || roomID == "" {
		return
	}
	if err := s.store.CloseRoom(roomID); err != nil {
		s.logger.Error("failed to close room on disconnect",
			zap.String("room_id", roomID), zap.Error(err))
		return
	}
	s.logger.Info("room closed on disconnect",
		zap.String("room_id", roomID), zap.String("user_id", userID))
}

// Room looks up a chat room created by a confirmed pairing.
func (s *Service) Room(roomID string) (*models.ChatRoom, error) {
	if s.store == nil {
		return nil, storage.ErrRoomNotFound
	}
	return s.store.GetRoomByID(roomID)
}

// Stats snapshots engine counters.
func (s *Service) Stats() Stats {
	return Stats{
		Online:        s.Presence.Count(),
		Searching:     s.Pool.Len(),
		LiveProposals: s.Proposals.Live(),
	}
}
