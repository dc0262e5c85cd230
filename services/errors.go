package services

import "errors"

// Caller-recoverable errors surfaced synchronously to transition callers.
// Handlers map these onto HTTP statuses with errors.Is.
var (
	ErrEventNotFound          = errors.New("event not found")
	ErrParticipationNotFound  = errors.New("participation not found")
	ErrEventNotOpen           = errors.New("event is not open for registration")
	ErrDuplicateRegistration  = errors.New("already registered for this event")
	ErrQuotaExceeded          = errors.New("check-in quota for this event exhausted")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired attendance code")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotOwner               = errors.New("participation belongs to another user")
	ErrReasonRequired         = errors.New("a reason is required")

	ErrConfigMissing        = errors.New("leaderboard config not found")
	ErrAlreadyFinalized     = errors.New("leaderboard already finalized")
	ErrTooEarly             = errors.New("leaderboard window has not ended yet")
	ErrTierOverlap          = errors.New("reward tier rank ranges overlap or are not consecutive")
	ErrTierQuantityExceeded = errors.New("tier quantities exceed max reward recipients")
)
