package matchhub

import "errors"

// Caller-correctable matchmaking errors. None of these are fatal to the
// scheduler loop; they are returned to the session that caused them.
var (
	ErrInvalidCriteria  = errors.New("search criteria must contain at least one interest")
	ErrAlreadyQueued    = errors.New("user is already in matchmaking")
	ErrUserBanned       = errors.New("user is banned from matchmaking")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrNotAParticipant  = errors.New("user is not a participant of this proposal")
	ErrAlreadyTerminal  = errors.New("proposal already reached a terminal state")
	ErrAlreadyDecided   = errors.New("participant already submitted a decision")
)
