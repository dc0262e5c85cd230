package models

import (
	"time"

	"gorm.io/gorm"
)

// Reward is the simple monthly reward definition: complete N participations
// within a rolling window of M days.
type Reward struct {
	ID            string `json:"id" gorm:"primaryKey;type:uuid"`
	Name          string `json:"name" gorm:"size:255;not null"`
	Description   string `json:"description,omitempty" gorm:"type:text"`
	BadgeImageURL string `json:"badge_image_url,omitempty" gorm:"size:500"`

	RequiredCompletions int `json:"required_completions" gorm:"default:3;not null"`
	TimePeriodDays      int `json:"time_period_days" gorm:"default:30;not null"`

	Timestamps
}

// UserReward records a monthly award. The unique index is the idempotency
// guarantee: at most one award of a reward per user per calendar month.
type UserReward struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID   string `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uniq_user_reward_month"`
	RewardID string `json:"reward_id" gorm:"type:uuid;not null;uniqueIndex:uniq_user_reward_month"`

	EarnedAt    time.Time `json:"earned_at" gorm:"autoCreateTime"`
	EarnedMonth int       `json:"earned_month" gorm:"not null;uniqueIndex:uniq_user_reward_month"`
	EarnedYear  int       `json:"earned_year" gorm:"not null;uniqueIndex:uniq_user_reward_month"`

	Reward *Reward `json:"reward,omitempty" gorm:"foreignKey:RewardID"`
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

func (ur *UserReward) BeforeCreate(tx *gorm.DB) error {
	if ur.ID == "" {
		ur.ID = NewID()
	}
	return nil
}
