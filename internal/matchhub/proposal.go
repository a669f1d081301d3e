package matchhub

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

// ProposalState is the lifecycle state of a pairing.
type ProposalState string

const (
	StatePending       ProposalState = "pending"
	StateAcceptedByOne ProposalState = "accepted_by_one"
	StateConfirmed     ProposalState = "confirmed"
	StateRejected      ProposalState = "rejected"
	StateExpired       ProposalState = "expired"
)

// Terminal reports whether the state is immutable.
func (s ProposalState) Terminal() bool {
	return s == StateConfirmed || s == StateRejected || s == StateExpired
}

type decision int8

const (
	decisionUndecided decision = iota
	decisionAccept
	decisionReject
)

// Terminal proposals are kept around briefly so a late decision gets
// ErrAlreadyTerminal instead of ErrProposalNotFound.
const terminalRetention = time.Minute

// Proposal tracks a single pairing from creation through mutual decision to
// terminal resolution. Participants keep their original search criteria so
// a rejected or expired side can be re-enqueued with them.
type Proposal struct {
	ID        string
	Users     [2]models.SearchingUser
	State     ProposalState
	CreatedAt time.Time
	ExpiresAt time.Time

	decisions map[string]decision
	timer     *time.Timer
}

func (p *Proposal) participant(userID string) bool {
	return p.Users[0].UserID == userID || p.Users[1].UserID == userID
}

func (p *Proposal) counterpart(userID string) models.SearchingUser {
	if p.Users[0].UserID == userID {
		return p.Users[1]
	}
	return p.Users[0]
}

// OnlineChecker lets the proposal table skip re-enqueueing users who are no
// longer connected.
type OnlineChecker interface {
	IsOnline(userID string) bool
}

// ProposalService owns the proposal table and enforces that a user is a
// party to at most one non-terminal proposal at any time.
type ProposalService struct {
	mu     sync.Mutex
	byID   map[string]*Proposal
	byUser map[string]string // userID -> live proposal ID

	pool    *CandidatePool
	deliver Deliverer
	store   storage.Storage
	online  OnlineChecker
	cfg     config.MatchConfig
	logger  *zap.Logger
}

// NewProposalService constructs the proposal table. store and online may be
// nil; room creation and the online check are then skipped.
func NewProposalService(pool *CandidatePool, deliver Deliverer, store storage.Storage, online OnlineChecker, cfg config.MatchConfig, logger *zap.Logger) *ProposalService {
	return &ProposalService{
		byID:    make(map[string]*Proposal),
		byUser:  make(map[string]string),
		pool:    pool,
		deliver: deliver,
		store:   store,
		online:  online,
		cfg:     cfg,
		logger:  logger,
	}
}

// Create opens a Pending proposal between two claimed candidates and arms
// its expiry timer. Fails if either user already has a live proposal.
func (s *ProposalService) Create(a, b models.SearchingUser) (*Proposal, error) {
	s.mu.Lock()

	if pid, ok := s.byUser[a.UserID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("user %s already has live proposal %s", a.UserID, pid)
	}
	if pid, ok := s.byUser[b.UserID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("user %s already has live proposal %s", b.UserID, pid)
	}

	now := time.Now()
	p := &Proposal{
		ID:        uuid.New().String(),
		Users:     [2]models.SearchingUser{a, b},
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ProposalTTL()),
		decisions: map[string]decision{
			a.UserID: decisionUndecided,
			b.UserID: decisionUndecided,
		},
	}
	s.byID[p.ID] = p
	s.byUser[a.UserID] = p.ID
	s.byUser[b.UserID] = p.ID
	p.timer = time.AfterFunc(s.cfg.ProposalTTL(), func() { s.Expire(p.ID) })

	s.mu.Unlock()

	s.logger.Info("proposal created",
		zap.String("proposal_id", p.ID),
		zap.String("user1", a.UserID),
		zap.String("user2", b.UserID),
		zap.Time("expires_at", p.ExpiresAt))
	return p, nil
}

// SubmitDecision records an accept or reject from one participant and runs
// the resulting transition. One reject is enough to kill the proposal; the
// second accept confirms it.
func (s *ProposalService) SubmitDecision(proposalID, userID string, accept bool) (ProposalState, error) {
	s.mu.Lock()

	p, ok := s.byID[proposalID]
	if !ok {
		s.mu.Unlock()
		return "", ErrProposalNotFound
	}
	if !p.participant(userID) {
		s.mu.Unlock()
		return p.State, ErrNotAParticipant
	}
	if p.State.Terminal() {
		s.mu.Unlock()
		return p.State, ErrAlreadyTerminal
	}
	if p.decisions[userID] != decisionUndecided {
		s.mu.Unlock()
		return p.State, ErrAlreadyDecided
	}

	if !accept {
		p.decisions[userID] = decisionReject
		p.State = StateRejected
		s.releaseLocked(p)
		s.mu.Unlock()

		s.resolveRejected(p, userID)
		return StateRejected, nil
	}

	p.decisions[userID] = decisionAccept
	other := p.counterpart(userID)
	if p.decisions[other.UserID] == decisionAccept {
		p.State = StateConfirmed
		s.releaseLocked(p)
		s.mu.Unlock()

		s.resolveConfirmed(p)
		return StateConfirmed, nil
	}

	p.State = StateAcceptedByOne
	s.mu.Unlock()
	return StateAcceptedByOne, nil
}

// Expire moves a still-undecided proposal to Expired. Idempotent: a no-op
// if the proposal already reached a terminal state through a decision.
func (s *ProposalService) Expire(proposalID string) {
	s.mu.Lock()

	p, ok := s.byID[proposalID]
	if !ok || p.State.Terminal() {
		s.mu.Unlock()
		return
	}
	p.State = StateExpired
	s.releaseLocked(p)
	s.mu.Unlock()

	ev := models.Event{Type: models.EventMatchExpired, ProposalID: p.ID}
	s.deliver.Deliver(p.Users[0].UserID, ev)
	s.deliver.Deliver(p.Users[1].UserID, ev)

	// Neither side declined; both may keep searching.
	s.maybeRequeue(p.Users[0])
	s.maybeRequeue(p.Users[1])

	s.logger.Info("proposal expired", zap.String("proposal_id", p.ID))
}

// RejectByDisconnect treats a participant's disconnect as an implicit
// rejection of their live proposal, if any.
func (s *ProposalService) RejectByDisconnect(userID string) {
	s.mu.Lock()

	pid, ok := s.byUser[userID]
	if !ok {
		s.mu.Unlock()
		return
	}
	p := s.byID[pid]
	p.decisions[userID] = decisionReject
	p.State = StateRejected
	s.releaseLocked(p)
	s.mu.Unlock()

	other := p.counterpart(userID)
	s.deliver.Deliver(other.UserID, models.Event{
		Type:       models.EventMatchRejected,
		ProposalID: p.ID,
	})
	s.maybeRequeue(other)

	s.logger.Info("proposal rejected by disconnect",
		zap.String("proposal_id", p.ID), zap.String("user_id", userID))
}

// HasLive reports whether the user is a party to a non-terminal proposal.
func (s *ProposalService) HasLive(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byUser[userID]
	return ok
}

// Live returns the number of non-terminal proposals.
func (s *ProposalService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser) / 2
}

// Get returns the proposal by ID, including recently resolved ones.
func (s *ProposalService) Get(proposalID string) (*Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[proposalID]
	return p, ok
}

// StateOf reads the current state under the table lock, so callers racing
// with the expiry timer see a consistent value.
func (s *ProposalService) StateOf(proposalID string) (ProposalState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[proposalID]
	if !ok {
		return "", false
	}
	return p.State, true
}

// releaseLocked frees both participants from the live index, stops the
// expiry timer and schedules removal of the terminal record.
func (s *ProposalService) releaseLocked(p *Proposal) {
	delete(s.byUser, p.Users[0].UserID)
	delete(s.byUser, p.Users[1].UserID)
	if p.timer != nil {
		p.timer.Stop()
	}
	time.AfterFunc(terminalRetention, func() {
		s.mu.Lock()
		delete(s.byID, p.ID)
		s.mu.Unlock()
	})
}

func (s *ProposalService) resolveConfirmed(p *Proposal) {
	room := &models.ChatRoom{
		RoomID:     uuid.New().String(),
		ProposalID: p.ID,
		User1ID:    p.Users[0].UserID,
		User2ID:    p.Users[1].UserID,
		IsActive:   true,
		StartedAt:  time.Now(),
	}
	if s.store != nil {
		if err := s.store.SaveRoom(room); err != nil {
			// The pairing stands either way; the chat service owns room
			// durability and can recover from the proposal record.
			s.logger.Error("failed to save chat room",
				zap.String("proposal_id", p.ID), zap.Error(err))
		}
	}

	ev := models.Event{
		Type:       models.EventMatchConfirmed,
		ProposalID: p.ID,
		RoomID:     room.RoomID,
	}
	s.deliver.Deliver(p.Users[0].UserID, ev)
	s.deliver.Deliver(p.Users[1].UserID, ev)

	s.logger.Info("proposal confirmed",
		zap.String("proposal_id", p.ID), zap.String("room_id", room.RoomID))
}

func (s *ProposalService) resolveRejected(p *Proposal, rejectedBy string) {
	ev := models.Event{Type: models.EventMatchRejected, ProposalID: p.ID}
	s.deliver.Deliver(p.Users[0].UserID, ev)
	s.deliver.Deliver(p.Users[1].UserID, ev)

	// The rejecting user is never re-enqueued without fresh consent.
	s.maybeRequeue(p.counterpart(rejectedBy))

	s.logger.Info("proposal rejected",
		zap.String("proposal_id", p.ID), zap.String("rejected_by", rejectedBy))
}

// maybeRequeue puts a released participant back into the pool with their
// original criteria, when the deployment enables it and the user is still
// connected.
func (s *ProposalService) maybeRequeue(user models.SearchingUser) {
	if !s.cfg.AutoRequeueOnRejection {
		return
	}
	if s.online != nil && !s.online.IsOnline(user.UserID) {
		return
	}
	if err := s.pool.Enqueue(user.UserID, user.Criteria); err != nil {
		s.logger.Warn("auto-requeue skipped",
			zap.String("user_id", user.UserID), zap.Error(err))
	}
}
