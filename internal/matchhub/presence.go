package matchhub

import (
	"sync"

	"go.uber.org/zap"

	"pairgogo/backend/internal/models"
)

// DisconnectHook is invoked after a user's session is removed from the
// registry. The facade wires it to search cancellation and
// rejection-by-disconnect of any live proposal.
type DisconnectHook func(userID string)

// PresenceService maps a user ID to its currently connected session. It is
// an explicitly constructed instance passed by reference; nothing in the
// process holds a package-level session map.
type PresenceService struct {
	mu           sync.RWMutex
	sessions     map[string]Session
	onDisconnect DisconnectHook
	logger       *zap.Logger
}

// NewPresenceService creates an empty registry.
func NewPresenceService(logger *zap.Logger) *PresenceService {
	return &PresenceService{
		sessions: make(map[string]Session),
		logger:   logger,
	}
}

// SetDisconnectHook installs the hook fired on unregistration. Must be set
// before sessions start connecting.
func (p *PresenceService) SetDisconnectHook(h DisconnectHook) {
	p.onDisconnect = h
}

// Register binds a session to its user ID. A second connection for the same
// user supersedes the first: last writer wins for delivery purposes, and the
// superseded session is closed. Superseding does not count as a disconnect.
func (p *PresenceService) Register(s Session) {
	userID := s.GetUserID()

	p.mu.Lock()
	old, had := p.sessions[userID]
	p.sessions[userID] = s
	p.mu.Unlock()

	if had && old != s {
		old.Close()
		p.logger.Info("session superseded", zap.String("user_id", userID))
		return
	}
	p.logger.Info("session registered", zap.String("user_id", userID))
}

// UnregisterSession removes the mapping only if the given session is still
// the current one, so a stale connection going away cannot evict its
// replacement. Returns whether the mapping was removed.
func (p *PresenceService) UnregisterSession(s Session) bool {
	userID := s.GetUserID()

	p.mu.Lock()
	current, ok := p.sessions[userID]
	if !ok || current != s {
		p.mu.Unlock()
		return false
	}
	delete(p.sessions, userID)
	p.mu.Unlock()

	s.Close()
	p.logger.Info("session unregistered", zap.String("user_id", userID))

	if p.onDisconnect != nil {
		p.onDisconnect(userID)
	}
	return true
}

// Unregister removes whatever session the user currently has. Idempotent.
func (p *PresenceService) Unregister(userID string) bool {
	p.mu.Lock()
	current, ok := p.sessions[userID]
	if ok {
		delete(p.sessions, userID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	current.Close()
	p.logger.Info("session unregistered", zap.String("user_id", userID))

	if p.onDisconnect != nil {
		p.onDisconnect(userID)
	}
	return true
}

// IsOnline reports whether the user has a connected session.
func (p *PresenceService) IsOnline(userID string) bool {
	p.mu.RLock()
	_, ok := p.sessions[userID]
	p.mu.RUnlock()
	return ok
}

// Count returns the number of connected sessions.
func (p *PresenceService) Count() int {
	p.mu.RLock()
	n := len(p.sessions)
	p.mu.RUnlock()
	return n
}

// DeliverLocal pushes an event into the user's local session without ever
// blocking the caller: a full send buffer drops the event. Returns whether a
// local session existed.
//
// The read lock is held across the send. Session teardown mutates the map
// under the write lock before Close runs, so a session found here cannot be
// torn down until the lock is released.
func (p *PresenceService) DeliverLocal(userID string, ev models.Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.sessions[userID]
	if !ok {
		return false
	}

	select {
	case s.GetSendChannel() <- ev:
	default:
		p.logger.Warn("dropping event for slow session",
			zap.String("user_id", userID), zap.String("event", ev.Type))
	}
	return true
}
