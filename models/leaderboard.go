package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RewardTier is one slice of the leaderboard prize table: ranks
// [MinRank, MaxRank] share a reward, limited to Quantity recipients.
type RewardTier struct {
	Tier                int    `json:"tier"`
	MinRank             int    `json:"min_rank"`
	MaxRank             int    `json:"max_rank"`
	RewardID            string `json:"reward_id"`
	RewardName          string `json:"reward_name,omitempty"`
	Quantity            int    `json:"quantity"`
	RequiredCompletions *int   `json:"required_completions,omitempty"`
}

// RewardLeaderboardConfig holds the ranking rules for one event. It becomes
// immutable the moment FinalizedAt is set.
type RewardLeaderboardConfig struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	EventID string `json:"event_id" gorm:"type:uuid;not null;uniqueIndex"`

	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	RequiredCompletions int `json:"required_completions" gorm:"default:30;not null"`
	MaxRewardRecipients int `json:"max_reward_recipients" gorm:"default:200;not null"`

	Tiers datatypes.JSONSlice[RewardTier] `json:"tiers"`

	IsActive bool      `json:"is_active" gorm:"default:true;not null"`
	StartsAt time.Time `json:"starts_at" gorm:"not null"`
	EndsAt   time.Time `json:"ends_at" gorm:"not null"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	CreatedBy string `json:"created_by" gorm:"type:uuid"`

	Timestamps
}

func (c *RewardLeaderboardConfig) IsFinalized() bool {
	return c.FinalizedAt != nil
}

// MinRequiredCompletions is the lowest completion threshold across the config
// default and every tier override; reaching it sets qualified_at.
func (c *RewardLeaderboardConfig) MinRequiredCompletions() int {
	min := c.RequiredCompletions
	for _, t := range c.Tiers {
		if t.RequiredCompletions != nil && *t.RequiredCompletions < min {
			min = *t.RequiredCompletions
		}
	}
	return min
}

// TierRequiredCompletions resolves a tier's threshold, falling back to the
// config default.
func (c *RewardLeaderboardConfig) TierRequiredCompletions(t RewardTier) int {
	if t.RequiredCompletions != nil {
		return *t.RequiredCompletions
	}
	return c.RequiredCompletions
}

// RewardLeaderboardEntry is one user's running tally on one leaderboard.
// Rank and reward stay null until finalization.
type RewardLeaderboardEntry struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	ConfigID string `json:"config_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_config_user"`
	UserID   string `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_config_user"`

	TotalCompletions int                         `json:"total_completions" gorm:"default:0;not null"`
	ParticipationIDs datatypes.JSONSlice[string] `json:"participation_ids"`

	// Set the first instant TotalCompletions reaches the minimum threshold;
	// never cleared afterwards.
	QualifiedAt *time.Time `json:"qualified_at,omitempty" gorm:"index"`

	Rank       *int       `json:"rank,omitempty" gorm:"index"`
	RewardID   *string    `json:"reward_id,omitempty" gorm:"type:uuid"`
	RewardTier *int       `json:"reward_tier,omitempty"`
	RewardedAt *time.Time `json:"rewarded_at,omitempty"`

	Timestamps
}

func (e *RewardLeaderboardConfig) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}

func (e *RewardLeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}
