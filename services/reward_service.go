package services

import (
	"errors"
	"log"

	"event-checkin-system/models"
	"event-checkin-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardService is the simple monthly reward path: complete N participations
// inside a rolling window, earn the badge at most once per calendar month.
// It is fully independent of the leaderboard engine; a completion may count
// toward both.
type RewardService struct {
	DB            *gorm.DB
	Clock         *utils.ReferenceClock
	Notifications *NotificationService
}

func NewRewardService(db *gorm.DB, clock *utils.ReferenceClock, notifications *NotificationService) *RewardService {
	return &RewardService{DB: db, Clock: clock, Notifications: notifications}
}

// QualifyingCount counts the user's participations that satisfy a reward's
// rolling window: completed or checked-out inside the window, plus, for
// daily-check-in events, any non-cancelled, non-expired record dated inside
// it. A record matching both arms counts once.
func (s *RewardService) QualifyingCount(userID string, reward *models.Reward) (int64, error) {
	now := s.Clock.Now().UTC()
	windowStart := now.AddDate(0, 0, -reward.TimePeriodDays)
	windowStartDay := s.Clock.DayOf(windowStart)

	var count int64
	err := s.DB.Model(&models.EventParticipation{}).
		Distinct("event_participations.id").
		Joins("JOIN events ON events.id = event_participations.event_id").
		Where("event_participations.user_id = ?", userID).
		Where(
			s.DB.Where(
				"event_participations.status IN ? AND (event_participations.completed_at >= ? OR event_participations.checked_out_at >= ?)",
				[]models.ParticipationStatus{models.StatusCompleted, models.StatusCheckedOut},
				windowStart, windowStart,
			).Or(
				"events.allow_daily_checkin = ? AND event_participations.checkin_date >= ? AND event_participations.status NOT IN ?",
				true, windowStartDay,
				[]models.ParticipationStatus{models.StatusCancelled, models.StatusExpired},
			),
		).
		Count(&count).Error
	return count, err
}

// CheckAndAwardRewards evaluates every reward definition for the user and
// awards the ones whose threshold is met. The unique index on
// (user, reward, month, year) makes re-runs idempotent.
func (s *RewardService) CheckAndAwardRewards(userID string) ([]models.UserReward, error) {
	var rewards []models.Reward
	if err := s.DB.Find(&rewards).Error; err != nil {
		return nil, err
	}

	now := s.Clock.Now().In(s.Clock.Location)
	month := int(now.Month())
	year := now.Year()

	var awarded []models.UserReward
	for i := range rewards {
		reward := rewards[i]

		var existing models.UserReward
		err := s.DB.Where(
			"user_id = ? AND reward_id = ? AND earned_month = ? AND earned_year = ?",
			userID, reward.ID, month, year,
		).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return awarded, err
		}

		count, err := s.QualifyingCount(userID, &reward)
		if err != nil {
			return awarded, err
		}
		if count < int64(reward.RequiredCompletions) {
			continue
		}

		userReward := models.UserReward{
			UserID:      userID,
			RewardID:    reward.ID,
			EarnedMonth: month,
			EarnedYear:  year,
		}
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&userReward)
		if res.Error != nil {
			return awarded, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent award this month.
			continue
		}

		log.Printf("🏆 Awarded reward '%s' to user %s (%d/%d completions)",
			reward.Name, userID, count, reward.RequiredCompletions)
		s.Notifications.NotifyRewardEarned(userID, reward.ID, reward.Name)
		awarded = append(awarded, userReward)
	}

	return awarded, nil
}

// ListUserRewards returns everything the user has earned, newest first.
func (s *RewardService) ListUserRewards(userID string) ([]models.UserReward, error) {
	var userRewards []models.UserReward
	err := s.DB.Preload("Reward").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&userRewards).Error
	return userRewards, err
}
