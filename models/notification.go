package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationEventJoined        NotificationType = "event_joined"
	NotificationCheckInSuccess     NotificationType = "check_in_success"
	NotificationCheckOutSuccess    NotificationType = "check_out_success"
	NotificationProofSubmitted     NotificationType = "proof_submitted"
	NotificationProofResubmitted   NotificationType = "proof_resubmitted"
	NotificationCompletionApproved NotificationType = "completion_approved"
	NotificationCompletionRejected NotificationType = "completion_rejected"
	NotificationCancelled          NotificationType = "participation_cancelled"
	NotificationCodeExpired        NotificationType = "code_expired"
	NotificationRewardEarned       NotificationType = "reward_earned"
)

// Notification is the in-app inbox row written after each successful state
// transition. Delivery to email/push channels is someone else's job.
type Notification struct {
	ID     string           `json:"id" gorm:"primaryKey;type:uuid"`
	UserID string           `json:"user_id" gorm:"type:uuid;not null;index"`
	Type   NotificationType `json:"type" gorm:"type:varchar(32);not null"`

	Title   string `json:"title" gorm:"size:255;not null"`
	Message string `json:"message" gorm:"type:text"`

	EventID         *string `json:"event_id,omitempty" gorm:"type:uuid"`
	ParticipationID *string `json:"participation_id,omitempty" gorm:"type:uuid"`
	RewardID        *string `json:"reward_id,omitempty" gorm:"type:uuid"`

	IsRead bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}
