package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"event-checkin-system/models"
)

func newTestScheduler(ts *testStack) *SchedulerService {
	return NewSchedulerService(ts.DB, ts.Clock, ts.Participation, ts.Leaderboard, ts.Notification, NewCodeGenerator(ts.DB))
}

func TestRunUnlockIssuesDailyCodes(t *testing.T) {
	ts := newTestStack(t)
	sched := newTestScheduler(ts)
	end := testBaseTime.AddDate(0, 0, 10)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	userID := uuid.NewString()

	_, err := ts.Participation.PreRegister(userID, event.ID)
	require.NoError(t, err)

	// Next morning the unlock job issues a fresh code dated today.
	ts.advanceDays(1)
	require.NoError(t, sched.RunUnlock(context.Background()))

	var todays []models.EventParticipation
	require.NoError(t, ts.DB.Where(
		"user_id = ? AND event_id = ? AND checkin_date = ?",
		userID, event.ID, ts.Clock.Today(),
	).Find(&todays).Error)
	require.Len(t, todays, 1)
	require.Equal(t, models.StatusJoined, todays[0].Status)
	require.NotNil(t, todays[0].CodeExpiresAt)

	// Idempotent: a second run creates nothing.
	require.NoError(t, sched.RunUnlock(context.Background()))
	var count int64
	require.NoError(t, ts.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND event_id = ? AND checkin_date = ?", userID, event.ID, ts.Clock.Today()).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRunUnlockSkipsCancelledUsersAndExhaustedQuotas(t *testing.T) {
	ts := newTestStack(t)
	sched := newTestScheduler(ts)
	end := testBaseTime.AddDate(0, 0, 10)
	event := ts.createDailyEvent(t, testBaseTime, end, 2)

	quitter := uuid.NewString()
	capped := uuid.NewString()

	_, err := ts.Participation.PreRegister(quitter, event.ID)
	require.NoError(t, err)
	_, err = ts.Participation.CancelPreRegistration(quitter, event.ID, "leaving")
	require.NoError(t, err)

	_, err = ts.Participation.PreRegister(capped, event.ID)
	require.NoError(t, err)

	// Day 2: capped gets their second (and last) slot.
	ts.advanceDays(1)
	require.NoError(t, sched.RunUnlock(context.Background()))

	var count int64
	require.NoError(t, ts.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND status <> ?", quitter, models.StatusCancelled).
		Count(&count).Error)
	require.Zero(t, count, "cancelled users get no new codes")

	// Day 3: quota of 2 spent, nothing new for capped either.
	ts.advanceDays(1)
	require.NoError(t, sched.RunUnlock(context.Background()))
	require.NoError(t, ts.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND status <> ?", capped, models.StatusCancelled).
		Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestRunUnlockIgnoresInactiveAndEndedEvents(t *testing.T) {
	ts := newTestStack(t)
	sched := newTestScheduler(ts)
	end := testBaseTime.AddDate(0, 0, 2)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	userID := uuid.NewString()

	_, err := ts.Participation.PreRegister(userID, event.ID)
	require.NoError(t, err)

	// Past the event's end date nothing is issued.
	ts.advanceDays(5)
	require.NoError(t, sched.RunUnlock(context.Background()))

	var count int64
	require.NoError(t, ts.DB.Model(&models.EventParticipation{}).
		Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count, "only the original pre-registration exists")
}

func TestRunExpireSweepsStaleRecords(t *testing.T) {
	ts := newTestStack(t)
	sched := newTestScheduler(ts)
	end := testBaseTime.AddDate(0, 0, 10)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	staffID := uuid.NewString()

	ghost := uuid.NewString()  // joined, never came
	runner := uuid.NewString() // checked in and completed

	_, err := ts.Participation.Join(ghost, event.ID)
	require.NoError(t, err)

	p, err := ts.Participation.Join(runner, event.ID)
	require.NoError(t, err)
	p, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.NoError(t, err)
	p, err = ts.Participation.SubmitProof(p.ID, runner, "https://cdn/d1.jpg", "h1", "", nil)
	require.NoError(t, err)
	_, err = ts.Participation.Verify(p.ID, staffID, true, "")
	require.NoError(t, err)

	ts.advanceDays(1)
	fresh, err := ts.Participation.Join(ghost, event.ID)
	require.NoError(t, err)

	require.NoError(t, sched.RunExpire(context.Background()))

	var statuses []models.ParticipationStatus
	require.NoError(t, ts.DB.Model(&models.EventParticipation{}).
		Where("user_id = ?", ghost).
		Order("checkin_date ASC").
		Pluck("status", &statuses).Error)
	require.Equal(t, []models.ParticipationStatus{models.StatusExpired, models.StatusJoined}, statuses,
		"yesterday's record expires, today's survives")

	reloaded, err := ts.Participation.GetByID(fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusJoined, reloaded.Status)

	// Completed attendance is never swept.
	completed, err := ts.Participation.GetByID(p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, completed.Status)

	require.EqualValues(t, 1, ts.notificationCount(t, ghost, models.NotificationCodeExpired))

	// Idempotent: nothing left to expire, no duplicate notifications.
	require.NoError(t, sched.RunExpire(context.Background()))
	require.EqualValues(t, 1, ts.notificationCount(t, ghost, models.NotificationCodeExpired))
}
