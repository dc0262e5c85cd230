package services

import (
	"context"
	"errors"
	"log"
	"sort"

	"event-checkin-system/models"
	"event-checkin-system/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeaderboardService maintains per-event reward leaderboards: running
// completion tallies while the window is open, then a one-shot finalization
// that ranks qualifiers first-come-first-served and walks the tier table.
type LeaderboardService struct {
	DB    *gorm.DB
	Clock *utils.ReferenceClock
}

func NewLeaderboardService(db *gorm.DB, clock *utils.ReferenceClock) *LeaderboardService {
	return &LeaderboardService{DB: db, Clock: clock}
}

// ValidateTiers enforces the config shape: tiers numbered consecutively from
// 1, rank ranges contiguous and non-overlapping starting at rank 1, and the
// summed quantities within the global recipient cap.
func ValidateTiers(tiers []models.RewardTier, maxRecipients int) error {
	sorted := make([]models.RewardTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tier < sorted[j].Tier })

	nextRank := 1
	totalQuantity := 0
	for i, t := range sorted {
		if t.Tier != i+1 {
			return ErrTierOverlap
		}
		if t.MinRank != nextRank || t.MaxRank < t.MinRank {
			return ErrTierOverlap
		}
		if t.Quantity <= 0 {
			return ErrTierQuantityExceeded
		}
		nextRank = t.MaxRank + 1
		totalQuantity += t.Quantity
	}
	if totalQuantity > maxRecipients {
		return ErrTierQuantityExceeded
	}
	return nil
}

// CreateConfig registers the leaderboard rules for an event. One config per
// event; the unique index on event_id backs this up.
func (s *LeaderboardService) CreateConfig(config *models.RewardLeaderboardConfig) error {
	if err := ValidateTiers(config.Tiers, config.MaxRewardRecipients); err != nil {
		return err
	}
	return s.DB.Create(config).Error
}

// UpdateConfig applies organizer edits. Finalized configs are immutable.
func (s *LeaderboardService) UpdateConfig(configID string, apply func(*models.RewardLeaderboardConfig)) (*models.RewardLeaderboardConfig, error) {
	var config models.RewardLeaderboardConfig
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&config, "id = ?", configID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConfigMissing
			}
			return err
		}
		if config.IsFinalized() {
			return ErrAlreadyFinalized
		}
		apply(&config)
		if err := ValidateTiers(config.Tiers, config.MaxRewardRecipients); err != nil {
			return err
		}
		return tx.Save(&config).Error
	})
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// DeleteConfig removes a config and its entries; refused once finalized.
func (s *LeaderboardService) DeleteConfig(configID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var config models.RewardLeaderboardConfig
		if err := tx.First(&config, "id = ?", configID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConfigMissing
			}
			return err
		}
		if config.IsFinalized() {
			return ErrAlreadyFinalized
		}
		if err := tx.Where("config_id = ?", configID).Delete(&models.RewardLeaderboardEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&config).Error
	})
}

func (s *LeaderboardService) GetConfig(configID string) (*models.RewardLeaderboardConfig, error) {
	var config models.RewardLeaderboardConfig
	err := s.DB.First(&config, "id = ?", configID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (s *LeaderboardService) GetConfigByEvent(eventID string) (*models.RewardLeaderboardConfig, error) {
	var config models.RewardLeaderboardConfig
	err := s.DB.First(&config, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// RecordCompletion refreshes the user's entry after a participation completes.
// qualified_at is stamped the first time the tally reaches the lowest tier
// threshold and is never cleared afterwards.
func (s *LeaderboardService) RecordCompletion(userID, eventID string) (*models.RewardLeaderboardEntry, error) {
	var entry *models.RewardLeaderboardEntry

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var config models.RewardLeaderboardConfig
		err := tx.First(&config, "event_id = ?", eventID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConfigMissing
		}
		if err != nil {
			return err
		}
		if !config.IsActive || config.IsFinalized() {
			return nil
		}

		now := s.Clock.Now().UTC()
		if now.Before(config.StartsAt) || now.After(config.EndsAt) {
			return nil
		}

		var completions []models.EventParticipation
		err = tx.Where("user_id = ? AND event_id = ? AND status = ?",
			userID, eventID, models.StatusCompleted).
			Order("completed_at ASC").
			Find(&completions).Error
		if err != nil {
			return err
		}
		if len(completions) == 0 {
			return nil
		}

		var e models.RewardLeaderboardEntry
		err = tx.Where("config_id = ? AND user_id = ?", config.ID, userID).First(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e = models.RewardLeaderboardEntry{ConfigID: config.ID, UserID: userID}
		} else if err != nil {
			return err
		}

		ids := make([]string, len(completions))
		for i := range completions {
			ids[i] = completions[i].ID
		}
		e.TotalCompletions = len(completions)
		e.ParticipationIDs = datatypes.JSONSlice[string](ids)

		if e.QualifiedAt == nil && e.TotalCompletions >= config.MinRequiredCompletions() {
			e.QualifiedAt = &now
			log.Printf("🎯 User %s qualified on leaderboard %s (%d completions)", userID, config.ID, e.TotalCompletions)
		}

		if err := tx.Save(&e).Error; err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// sortQualified orders entries first-to-qualify first. Entry ID breaks
// same-instant ties so the ordering is total and reproducible.
func sortQualified(entries []models.RewardLeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		qi, qj := *entries[i].QualifiedAt, *entries[j].QualifiedAt
		if qi.Equal(qj) {
			return entries[i].ID < entries[j].ID
		}
		return qi.Before(qj)
	})
}

// CalculateRankings assigns provisional ranks to qualified entries without
// touching rewards. Organizers may re-run it freely before finalization.
func (s *LeaderboardService) CalculateRankings(configID string) (int, error) {
	ranked := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var config models.RewardLeaderboardConfig
		err := tx.First(&config, "id = ?", configID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConfigMissing
		}
		if err != nil {
			return err
		}
		if config.IsFinalized() {
			return ErrAlreadyFinalized
		}

		entries, err := s.qualifiedEntries(tx, configID)
		if err != nil {
			return err
		}
		for i := range entries {
			rank := i + 1
			entries[i].Rank = &rank
			if err := tx.Save(&entries[i]).Error; err != nil {
				return err
			}
		}
		ranked = len(entries)
		return nil
	})
	return ranked, err
}

func (s *LeaderboardService) qualifiedEntries(tx *gorm.DB, configID string) ([]models.RewardLeaderboardEntry, error) {
	var entries []models.RewardLeaderboardEntry
	err := tx.Where("config_id = ? AND qualified_at IS NOT NULL", configID).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	sortQualified(entries)
	return entries, nil
}

// Finalize is the one-shot ranking and tier allocation pass. The whole
// read-sort-assign-write sequence runs in one transaction, and the
// conditional claim on finalized_at guarantees exactly-once semantics even
// against a concurrent caller.
func (s *LeaderboardService) Finalize(configID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var config models.RewardLeaderboardConfig
		err := tx.First(&config, "id = ?", configID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConfigMissing
		}
		if err != nil {
			return err
		}
		if config.IsFinalized() {
			return ErrAlreadyFinalized
		}

		now := s.Clock.Now().UTC()
		if now.Before(config.EndsAt) {
			return ErrTooEarly
		}

		// Claim the config. RowsAffected == 0 means somebody else finalized
		// between our read and this write.
		res := tx.Model(&models.RewardLeaderboardConfig{}).
			Where("id = ? AND finalized_at IS NULL", configID).
			Update("finalized_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyFinalized
		}

		entries, err := s.qualifiedEntries(tx, configID)
		if err != nil {
			return err
		}

		tierAssigned := make(map[int]int, len(config.Tiers))
		totalAssigned := 0

		for i := range entries {
			entry := &entries[i]
			rank := i + 1
			entry.Rank = &rank

			for _, tier := range config.Tiers {
				if rank < tier.MinRank || rank > tier.MaxRank {
					continue
				}
				if tierAssigned[tier.Tier] >= tier.Quantity {
					continue
				}
				if totalAssigned >= config.MaxRewardRecipients {
					continue
				}
				if entry.TotalCompletions < config.TierRequiredCompletions(tier) {
					continue
				}

				rewardID := tier.RewardID
				tierNumber := tier.Tier
				rewardedAt := now
				entry.RewardID = &rewardID
				entry.RewardTier = &tierNumber
				entry.RewardedAt = &rewardedAt
				tierAssigned[tier.Tier]++
				totalAssigned++
				break
			}

			if err := tx.Save(entry).Error; err != nil {
				return err
			}
		}

		log.Printf("🏁 Finalized leaderboard %s: %d ranked, %d rewarded", configID, len(entries), totalAssigned)
		return nil
	})
}

// FinalizeDueEvents sweeps single-day events whose end time has passed and
// whose leaderboard is still open, finalizing each. Per-event failures are
// logged and do not abort the sweep. Shared by the daily scheduler job and
// the lifecycle poll worker.
func (s *LeaderboardService) FinalizeDueEvents(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()

	var configs []models.RewardLeaderboardConfig
	err := s.DB.WithContext(ctx).
		Joins("JOIN events ON events.id = reward_leaderboard_configs.event_id").
		Where("events.event_type = ?", models.EventTypeSingleDay).
		Where("COALESCE(events.ends_at, events.starts_at) < ?", now).
		Where("reward_leaderboard_configs.finalized_at IS NULL").
		Find(&configs).Error
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, config := range configs {
		if ctx.Err() != nil {
			return finalized, ctx.Err()
		}
		err := s.Finalize(config.ID)
		switch {
		case err == nil:
			finalized++
		case errors.Is(err, ErrAlreadyFinalized):
			// Raced with a manual finalize; nothing to do.
		case errors.Is(err, ErrTooEarly):
			// Config window outlives the event itself; wait for it.
		default:
			log.Printf("❌ Failed to finalize leaderboard %s (event %s): %v", config.ID, config.EventID, err)
		}
	}
	return finalized, nil
}

// PublicEntries returns the finalized standings for an event, best rank
// first. An unfinalized board reports ErrConfigMissing so provisional ranks
// never leak.
func (s *LeaderboardService) PublicEntries(eventID string) (*models.RewardLeaderboardConfig, []models.RewardLeaderboardEntry, error) {
	config, err := s.GetConfigByEvent(eventID)
	if err != nil {
		return nil, nil, err
	}
	if !config.IsFinalized() {
		return nil, nil, ErrConfigMissing
	}

	var entries []models.RewardLeaderboardEntry
	err = s.DB.Where("config_id = ? AND rank IS NOT NULL", config.ID).
		Order("rank ASC").
		Find(&entries).Error
	if err != nil {
		return nil, nil, err
	}
	return config, entries, nil
}

// Entries returns every entry on a leaderboard for organizer tooling,
// ranked entries first.
func (s *LeaderboardService) Entries(configID string, qualifiedOnly bool) ([]models.RewardLeaderboardEntry, error) {
	query := s.DB.Where("config_id = ?", configID)
	if qualifiedOnly {
		query = query.Where("qualified_at IS NOT NULL")
	}

	var entries []models.RewardLeaderboardEntry
	if err := query.Order("rank ASC").Order("qualified_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// EntryFor returns one user's entry on an event's leaderboard.
func (s *LeaderboardService) EntryFor(eventID, userID string) (*models.RewardLeaderboardEntry, error) {
	config, err := s.GetConfigByEvent(eventID)
	if err != nil {
		return nil, err
	}
	var entry models.RewardLeaderboardEntry
	if err := s.DB.Where("config_id = ? AND user_id = ?", config.ID, userID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
