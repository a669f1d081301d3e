package matchhub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/models"
)

// SchedulerService pairs searching users in periodic bounded sweeps instead
// of matching synchronously on every enqueue. With tens of thousands of
// simultaneous searchers this bounds lock contention and tail latency.
type SchedulerService struct {
	pool      *CandidatePool
	proposals *ProposalService
	deliver   Deliverer
	cfg       config.MatchConfig
	logger    *zap.Logger

	wakeCh chan struct{}
}

// NewSchedulerService constructs the scheduler.
func NewSchedulerService(pool *CandidatePool, proposals *ProposalService, deliver Deliverer, cfg config.MatchConfig, logger *zap.Logger) *SchedulerService {
	return &SchedulerService{
		pool:      pool,
		proposals: proposals,
		deliver:   deliver,
		cfg:       cfg,
		logger:    logger,
		wakeCh:    make(chan struct{}, 1),
	}
}

// Run is the long-lived scheduler loop. It sweeps on every tick and on
// every wake signal, and never exits on a sweep error; a failed pair simply
// waits for the next tick.
func (s *SchedulerService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	s.logger.Info("matching scheduler started",
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Duration("sweep_interval", s.cfg.SweepInterval()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("matching scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep()
		case <-s.wakeCh:
			s.Sweep()
		}
	}
}

// Wake nudges the loop to sweep before the next tick, e.g. right after an
// enqueue. Non-blocking; a pending wake is enough.
func (s *SchedulerService) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Sweep plans one batch: snapshot the oldest candidates, pair them greedily
// oldest-first, claim each pair from the pool and open a proposal. First
// compatible match wins; no scoring. Returns the number of pairs formed.
func (s *SchedulerService) Sweep() int {
	batch := s.pool.Snapshot(s.cfg.BatchSize)
	if len(batch) < 2 {
		return 0
	}

	paired := make([]bool, len(batch))
	pairs := 0

	for i := range batch {
		if paired[i] {
			continue
		}
		for j := i + 1; j < len(batch); j++ {
			if paired[j] {
				continue
			}
			if !Compatible(batch[i].Criteria, batch[j].Criteria) {
				continue
			}
			paired[i], paired[j] = true, true
			if s.claimAndPropose(batch[i], batch[j]) {
				pairs++
			}
			break
		}
	}

	if pairs > 0 {
		s.logger.Debug("sweep complete",
			zap.Int("batch", len(batch)), zap.Int("pairs", pairs))
	}
	return pairs
}

// claimAndPropose atomically removes both candidates from the pool and
// opens a proposal. A claim can lose to a concurrent cancel or sweep; the
// pair is then abandoned and any already-claimed member is restored with
// its original enqueue time.
func (s *SchedulerService) claimAndPropose(a, b models.SearchingUser) bool {
	if !s.pool.Dequeue(a.UserID) {
		return false
	}
	if !s.pool.Dequeue(b.UserID) {
		if err := s.pool.Restore(a); err != nil {
			s.logger.Warn("failed to restore claimed candidate",
				zap.String("user_id", a.UserID), zap.Error(err))
		}
		return false
	}

	p, err := s.proposals.Create(a, b)
	if err != nil {
		s.logger.Warn("abandoning pair", zap.String("user1", a.UserID),
			zap.String("user2", b.UserID), zap.Error(err))
		if err := s.pool.Restore(a); err != nil {
			s.logger.Warn("failed to restore candidate",
				zap.String("user_id", a.UserID), zap.Error(err))
		}
		if err := s.pool.Restore(b); err != nil {
			s.logger.Warn("failed to restore candidate",
				zap.String("user_id", b.UserID), zap.Error(err))
		}
		return false
	}

	s.deliver.Deliver(a.UserID, models.Event{
		Type:        models.EventMatchFound,
		ProposalID:  p.ID,
		Counterpart: b.UserID,
	})
	s.deliver.Deliver(b.UserID, models.Event{
		Type:        models.EventMatchFound,
		ProposalID:  p.ID,
		Counterpart: a.UserID,
	})
	return true
}

// Compatible reports whether two candidates may be paired: they share at
// least one interest and their gender preferences are mutually satisfiable.
func Compatible(a, b models.SearchCriteria) bool {
	if !sharesInterest(a.Interests, b.Interests) {
		return false
	}
	return targetAccepts(a.TargetGender, b.Gender) && targetAccepts(b.TargetGender, a.Gender)
}

func sharesInterest(a, b []string) bool {
	// Interest sets are small (a handful of tags); a nested scan beats
	// allocating a map per comparison.
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// targetAccepts applies the directional preference rule: an unset or "any"
// target matches anything; a set target requires the candidate to have
// declared exactly that gender.
func targetAccepts(target, gender string) bool {
	if target == "" || target == "any" {
		return true
	}
	return target == gender
}
