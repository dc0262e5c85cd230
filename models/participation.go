package models

import (
	"time"

	"gorm.io/gorm"
)

// ParticipationStatus is the closed set of attendance record states.
type ParticipationStatus string

const (
	StatusJoined         ParticipationStatus = "joined"
	StatusCheckedIn      ParticipationStatus = "checked_in"
	StatusProofSubmitted ParticipationStatus = "proof_submitted"
	StatusCompleted      ParticipationStatus = "completed"
	StatusRejected       ParticipationStatus = "rejected"
	StatusCheckedOut     ParticipationStatus = "checked_out"
	StatusCancelled      ParticipationStatus = "cancelled"
	StatusExpired        ParticipationStatus = "expired"
)

// ParticipationAction names the events that drive the state machine.
type ParticipationAction string

const (
	ActionCheckIn     ParticipationAction = "check_in"
	ActionSubmitProof ParticipationAction = "submit_proof"
	ActionApprove     ParticipationAction = "approve"
	ActionReject      ParticipationAction = "reject"
	ActionCheckOut    ParticipationAction = "check_out"
	ActionCancel      ParticipationAction = "cancel"
	ActionExpire      ParticipationAction = "expire"
)

// transitions enumerates every legal (action, fromState) pair. Anything not
// listed here is an invalid transition, full stop.
var transitions = map[ParticipationAction]map[ParticipationStatus]ParticipationStatus{
	ActionCheckIn: {
		StatusJoined: StatusCheckedIn,
	},
	ActionSubmitProof: {
		StatusCheckedIn: StatusProofSubmitted,
		StatusRejected:  StatusProofSubmitted,
	},
	ActionApprove: {
		StatusProofSubmitted: StatusCompleted,
	},
	ActionReject: {
		StatusProofSubmitted: StatusRejected,
	},
	ActionCheckOut: {
		StatusCheckedIn: StatusCheckedOut,
	},
	ActionCancel: {
		StatusJoined:         StatusCancelled,
		StatusCheckedIn:      StatusCancelled,
		StatusProofSubmitted: StatusCancelled,
		StatusRejected:       StatusCancelled,
	},
	ActionExpire: {
		StatusJoined:         StatusExpired,
		StatusCheckedIn:      StatusExpired,
		StatusProofSubmitted: StatusExpired,
		StatusRejected:       StatusExpired,
	},
}

// NextStatus resolves the target state for applying action to from.
// ok is false when the pair is not a legal transition.
func NextStatus(from ParticipationStatus, action ParticipationAction) (ParticipationStatus, bool) {
	to, ok := transitions[action][from]
	return to, ok
}

// IsTerminal reports whether no further attendance progress is possible.
// REJECTED is deliberately absent: the user may resubmit proof.
func (s ParticipationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CountsAsCheckin reports whether the record represents real attendance for
// daily check-in stats (the user actually showed up that day).
func (s ParticipationStatus) CountsAsCheckin() bool {
	switch s {
	case StatusCheckedIn, StatusProofSubmitted, StatusCompleted, StatusCheckedOut:
		return true
	}
	return false
}

// EventParticipation is one attendance record: one row per (user, event,
// calendar day) attempt. Rows are never hard-deleted; cancellation and expiry
// are soft end states.
type EventParticipation struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID  string `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_user_event_day"`
	EventID string `json:"event_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_user_event_day"`

	// Short user-facing codes. Join codes are unique while live; both codes
	// may be recycled once a record is cancelled or expired.
	JoinCode       string  `json:"join_code" gorm:"size:5;not null;index;uniqueIndex:uniq_live_join_code,where:status <> 'cancelled' AND status <> 'expired'"`
	CompletionCode *string `json:"completion_code,omitempty" gorm:"size:10"`

	Status ParticipationStatus `json:"status" gorm:"type:varchar(20);default:'joined';not null;index"`

	// Daily check-in tracking
	CheckinDate   time.Time  `json:"checkin_date" gorm:"type:date;not null;index;uniqueIndex:uniq_user_event_day,where:status <> 'cancelled'"`
	CodeUsed      bool       `json:"code_used" gorm:"default:false"`
	CodeExpiresAt *time.Time `json:"code_expires_at,omitempty"`

	// Proof submission
	ProofImageURL    string     `json:"proof_image_url,omitempty" gorm:"type:text"`
	ProofImageHash   string     `json:"proof_image_hash,omitempty" gorm:"size:64;index"`
	ProofSubmittedAt *time.Time `json:"proof_submitted_at,omitempty"`
	ActivityLink     string     `json:"activity_link,omitempty" gorm:"type:text"`
	DistanceKM       *float64   `json:"distance_km,omitempty"`

	// Staff verification
	CheckedInBy *string    `json:"checked_in_by,omitempty" gorm:"type:uuid"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`

	CompletedBy *string    `json:"completed_by,omitempty" gorm:"type:uuid"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CheckedOutBy *string    `json:"checked_out_by,omitempty" gorm:"type:uuid"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`

	// Rejection
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"type:text"`
	RejectedBy      *string    `json:"rejected_by,omitempty" gorm:"type:uuid"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`

	// Cancellation
	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`

	Timestamps

	Event *Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
}

// IsCodeExpired reports whether the join code can no longer be used,
// evaluated against the given instant.
func (p *EventParticipation) IsCodeExpired(now time.Time) bool {
	return p.CodeExpiresAt != nil && now.After(*p.CodeExpiresAt)
}

// CanUseCode reports whether the join code is still redeemable.
func (p *EventParticipation) CanUseCode(now time.Time) bool {
	return !p.CodeUsed && !p.IsCodeExpired(now) && p.Status == StatusJoined
}

func (p *EventParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}
