package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"event-checkin-system/models"
	"event-checkin-system/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventParticipation{},
		&models.Reward{},
		&models.UserReward{},
		&models.RewardLeaderboardConfig{},
		&models.RewardLeaderboardEntry{},
		&models.Notification{},
	))
	return db
}

// testBaseTime is mid-morning on an arbitrary fixed day; tests advance the
// fake clock from here.
var testBaseTime = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type testStack struct {
	DB            *gorm.DB
	FakeClock     *clockwork.FakeClock
	Clock         *utils.ReferenceClock
	Participation *ParticipationService
	Leaderboard   *LeaderboardService
	Reward        *RewardService
	Notification  *NotificationService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := setupTestDB(t)
	fake := clockwork.NewFakeClockAt(testBaseTime)
	clock := utils.NewReferenceClock(fake, time.UTC)

	notifications := NewNotificationService(db)
	codes := NewCodeGenerator(db)
	return &testStack{
		DB:            db,
		FakeClock:     fake,
		Clock:         clock,
		Participation: NewParticipationService(db, clock, codes, notifications),
		Leaderboard:   NewLeaderboardService(db, clock),
		Reward:        NewRewardService(db, clock, notifications),
		Notification:  notifications,
	}
}

func (ts *testStack) advanceDays(days int) {
	ts.FakeClock.Advance(time.Duration(days) * 24 * time.Hour)
}

func (ts *testStack) createSingleDayEvent(t *testing.T, startsAt time.Time) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:          uuid.NewString(),
		Title:       "Morning 5K",
		EventType:   models.EventTypeSingleDay,
		StartsAt:    startsAt,
		IsActive:    true,
		IsPublished: true,
	}
	require.NoError(t, ts.DB.Create(event).Error)
	return event
}

func (ts *testStack) createDailyEvent(t *testing.T, startsAt, endsAt time.Time, maxCheckins int) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:                 uuid.NewString(),
		Title:              "30-Day Challenge",
		EventType:          models.EventTypeMultiDay,
		StartsAt:           startsAt,
		EndsAt:             &endsAt,
		AllowDailyCheckin:  true,
		MaxCheckinsPerUser: &maxCheckins,
		IsActive:           true,
		IsPublished:        true,
	}
	require.NoError(t, ts.DB.Create(event).Error)
	return event
}

func (ts *testStack) notificationCount(t *testing.T, userID string, typ models.NotificationType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, ts.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, typ).
		Count(&count).Error)
	return count
}
