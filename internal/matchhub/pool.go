package matchhub

import (
	"sort"
	"sync"
	"time"

	"pairgogo/backend/internal/models"
)

// poolEntry wraps a SearchingUser so the FIFO index can mark it dead
// in place instead of shifting the slice on every dequeue.
type poolEntry struct {
	user    models.SearchingUser
	removed bool
}

// CandidatePool holds users actively searching, keyed by user ID, in
// enqueue order. All operations take a single short-lived lock; the
// scheduler copies a bounded batch out instead of iterating under it.
type CandidatePool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	order   []*poolEntry // sorted by enqueue time, lazy deletion
	dead    int
}

// NewCandidatePool creates an empty pool.
func NewCandidatePool() *CandidatePool {
	return &CandidatePool{
		entries: make(map[string]*poolEntry),
	}
}

// Enqueue inserts the user with the current timestamp. A user already
// present must dequeue first: enqueue is not an idempotent merge.
func (p *CandidatePool) Enqueue(userID string, criteria models.SearchCriteria) error {
	if len(criteria.Interests) == 0 {
		return ErrInvalidCriteria
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[userID]; ok {
		return ErrAlreadyQueued
	}

	e := &poolEntry{user: models.SearchingUser{
		UserID:     userID,
		Criteria:   criteria,
		EnqueuedAt: time.Now(),
	}}
	p.entries[userID] = e
	p.order = append(p.order, e)
	return nil
}

// Restore puts a previously claimed entry back, keeping its original
// enqueue time so an aborted pairing does not cost the user their place.
// The entry is inserted at its timestamp position, not appended, so a
// bounded Snapshot still sees the oldest candidates first.
func (p *CandidatePool) Restore(user models.SearchingUser) error {
	if len(user.Criteria.Interests) == 0 {
		return ErrInvalidCriteria
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[user.UserID]; ok {
		return ErrAlreadyQueued
	}

	e := &poolEntry{user: user}
	p.entries[user.UserID] = e

	i := sort.Search(len(p.order), func(i int) bool {
		return p.order[i].user.EnqueuedAt.After(user.EnqueuedAt)
	})
	p.order = append(p.order, nil)
	copy(p.order[i+1:], p.order[i:])
	p.order[i] = e
	return nil
}

// Dequeue removes the user and reports whether they were present. Used for
// explicit cancel and for the scheduler's pair claim.
func (p *CandidatePool) Dequeue(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok {
		return false
	}
	e.removed = true
	delete(p.entries, userID)

	p.dead++
	if p.dead > len(p.order)/2 && p.dead > 64 {
		p.compactLocked()
	}
	return true
}

// Snapshot returns copies of up to limit entries ordered by enqueue time
// ascending, without removing them. The scheduler plans a batch from the
// copy so no pool lock is held while matching.
func (p *CandidatePool) Snapshot(limit int) []models.SearchingUser {
	p.mu.Lock()
	batch := make([]models.SearchingUser, 0, min(limit, len(p.entries)))
	for _, e := range p.order {
		if len(batch) >= limit {
			break
		}
		if e.removed {
			continue
		}
		batch = append(batch, e.user)
	}
	p.mu.Unlock()
	return batch
}

// Len returns the number of users currently searching.
func (p *CandidatePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *CandidatePool) compactLocked() {
	live := p.order[:0]
	for _, e := range p.order {
		if !e.removed {
			live = append(live, e)
		}
	}
	p.order = live
	p.dead = 0
}
