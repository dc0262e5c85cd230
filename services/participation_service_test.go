package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"event-checkin-system/models"
)

func TestJoinSingleDayEvent(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusJoined, p.Status)
	require.Len(t, p.JoinCode, 5)
	require.Equal(t, ts.Clock.Today(), p.CheckinDate)
	require.EqualValues(t, 1, ts.notificationCount(t, userID, models.NotificationEventJoined))

	_, err = ts.Participation.Join(userID, event.ID)
	require.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestJoinUnknownEvent(t *testing.T) {
	ts := newTestStack(t)
	_, err := ts.Participation.Join(uuid.NewString(), uuid.NewString())
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestJoinClosedEvent(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime)
	require.NoError(t, ts.DB.Model(event).Update("is_published", false).Error)

	_, err := ts.Participation.Join(uuid.NewString(), event.ID)
	require.ErrorIs(t, err, ErrEventNotOpen)
}

func TestJoinAfterEventEnded(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime)
	ts.advanceDays(1)

	_, err := ts.Participation.Join(uuid.NewString(), event.ID)
	require.ErrorIs(t, err, ErrEventNotOpen)
}

func TestCancelThenRejoinReactivatesRecord(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	firstCode := p.JoinCode

	_, err = ts.Participation.Cancel(p.ID, userID, "schedule conflict")
	require.NoError(t, err)
	require.EqualValues(t, 1, ts.notificationCount(t, userID, models.NotificationCancelled))

	rejoined, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, rejoined.ID, "cancelled record should be reactivated, not duplicated")
	require.Equal(t, models.StatusJoined, rejoined.Status)
	require.NotEqual(t, firstCode, rejoined.JoinCode)
	require.Empty(t, rejoined.CancellationReason)
	require.Nil(t, rejoined.CancelledAt)
}

func TestCancelRequiresReasonAndOwnership(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	_, err = ts.Participation.Cancel(p.ID, userID, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = ts.Participation.Cancel(p.ID, uuid.NewString(), "not mine")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestFullProofLifecycle(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()
	staffID := uuid.NewString()

	var completed []*models.EventParticipation
	ts.Participation.OnCompletion = func(p *models.EventParticipation) {
		completed = append(completed, p)
	}

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	p, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedIn, p.Status)
	require.True(t, p.CodeUsed)
	require.Equal(t, staffID, *p.CheckedInBy)

	// Same code cannot be scanned twice.
	_, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	distance := 5.2
	p, err = ts.Participation.SubmitProof(p.ID, userID, "https://cdn/proof.jpg", "abc123", "https://strava/run/1", &distance)
	require.NoError(t, err)
	require.Equal(t, models.StatusProofSubmitted, p.Status)
	require.NotNil(t, p.ProofSubmittedAt)

	p, err = ts.Participation.Verify(p.ID, staffID, true, "")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, p.Status)
	require.NotNil(t, p.CompletionCode)
	require.Len(t, *p.CompletionCode, 10)
	require.Equal(t, staffID, *p.CompletedBy)

	require.Len(t, completed, 1)
	require.Equal(t, p.ID, completed[0].ID)
	require.EqualValues(t, 1, ts.notificationCount(t, userID, models.NotificationCompletionApproved))
}

func TestRejectThenResubmit(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()
	staffID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	p, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.NoError(t, err)
	p, err = ts.Participation.SubmitProof(p.ID, userID, "https://cdn/blurry.jpg", "h1", "", nil)
	require.NoError(t, err)

	p, err = ts.Participation.Verify(p.ID, staffID, false, "photo is unreadable")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, p.Status)
	require.Equal(t, "photo is unreadable", p.RejectionReason)
	require.EqualValues(t, 1, ts.notificationCount(t, userID, models.NotificationCompletionRejected))

	// Rejection is not terminal; a resubmission clears the rejection fields.
	p, err = ts.Participation.SubmitProof(p.ID, userID, "https://cdn/sharp.jpg", "h2", "", nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusProofSubmitted, p.Status)
	require.Empty(t, p.RejectionReason)
	require.Nil(t, p.RejectedBy)
	require.EqualValues(t, 1, ts.notificationCount(t, userID, models.NotificationProofResubmitted))

	p, err = ts.Participation.Verify(p.ID, staffID, true, "")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, p.Status)
}

func TestCheckOutFlow(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()
	staffID := uuid.NewString()

	var completions int
	ts.Participation.OnCompletion = func(*models.EventParticipation) { completions++ }

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	p, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.NoError(t, err)

	p, err = ts.Participation.CheckOut(p.JoinCode, staffID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckedOut, p.Status)
	require.Equal(t, staffID, *p.CheckedOutBy)
	require.Equal(t, 1, completions)

	// Checked-out records are done; no proof, no second checkout.
	_, err = ts.Participation.SubmitProof(p.ID, userID, "https://cdn/p.jpg", "h", "", nil)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = ts.Participation.CheckOut(p.JoinCode, staffID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestSubmitProofOwnershipAndState(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	_, err = ts.Participation.SubmitProof(p.ID, uuid.NewString(), "https://cdn/p.jpg", "h", "", nil)
	require.ErrorIs(t, err, ErrNotOwner)

	// Proof before check-in is out of order.
	_, err = ts.Participation.SubmitProof(p.ID, userID, "https://cdn/p.jpg", "h", "", nil)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestLiveJoinCodeUniqueness(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 20)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	today := ts.Clock.Today()

	first := &models.EventParticipation{
		UserID:      uuid.NewString(),
		EventID:     event.ID,
		JoinCode:    "77777",
		Status:      models.StatusJoined,
		CheckinDate: today,
	}
	require.NoError(t, ts.DB.Create(first).Error)

	// A second live record may not hold the same code.
	dup := &models.EventParticipation{
		UserID:      uuid.NewString(),
		EventID:     event.ID,
		JoinCode:    "77777",
		Status:      models.StatusJoined,
		CheckinDate: today,
	}
	require.Error(t, ts.DB.Create(dup).Error)

	// Once the holder is expired the code is free for reuse.
	require.NoError(t, ts.DB.Model(first).Update("status", models.StatusExpired).Error)
	require.NoError(t, ts.DB.Create(dup).Error)
}

func TestCheckInExpiredCodeFlipsRecord(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 20)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	userID := uuid.NewString()
	staffID := uuid.NewString()

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	require.NotNil(t, p.CodeExpiresAt)

	// The code dies at end of day; scanning it tomorrow expires the record.
	ts.advanceDays(1)
	_, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	reloaded, err := ts.Participation.GetByID(p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, reloaded.Status)
}

func TestDailyQuotaCountsExpiredRecords(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 20)
	event := ts.createDailyEvent(t, testBaseTime, end, 3)
	userID := uuid.NewString()
	staffID := uuid.NewString()

	// Day 1: full completion.
	p1, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	p1, err = ts.Participation.CheckIn(p1.JoinCode, staffID)
	require.NoError(t, err)
	p1, err = ts.Participation.SubmitProof(p1.ID, userID, "https://cdn/d1.jpg", "h1", "", nil)
	require.NoError(t, err)
	_, err = ts.Participation.Verify(p1.ID, staffID, true, "")
	require.NoError(t, err)

	// Day 2: joined but never showed up.
	ts.advanceDays(1)
	p2, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	// No double join on the same day.
	_, err = ts.Participation.Join(userID, event.ID)
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	// Day 3: yesterday's record expires, but it still consumed a slot.
	ts.advanceDays(1)
	expired, err := ts.Participation.Expire(p2.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, expired.Status)

	_, err = ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	// Day 4: quota of 3 is exhausted (1 completed + 1 expired + 1 joined).
	ts.advanceDays(1)
	_, err = ts.Participation.Join(userID, event.ID)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestExpireRefusesTodayRecords(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 5)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)

	p, err := ts.Participation.Join(uuid.NewString(), event.ID)
	require.NoError(t, err)

	_, err = ts.Participation.Expire(p.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestPreRegisterMultiDay(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 10)
	event := ts.createDailyEvent(t, testBaseTime.AddDate(0, 0, 3), end, 10)
	userID := uuid.NewString()

	// Event starts in three days; the first code is dated the start day.
	p, err := ts.Participation.PreRegister(userID, event.ID)
	require.NoError(t, err)
	require.Equal(t, ts.Clock.DayOf(event.StartsAt), p.CheckinDate)
	require.Equal(t, models.StatusJoined, p.Status)

	_, err = ts.Participation.PreRegister(userID, event.ID)
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	cancelled, err := ts.Participation.CancelPreRegistration(userID, event.ID, "changed my mind")
	require.NoError(t, err)
	require.EqualValues(t, 1, cancelled)

	_, err = ts.Participation.CancelPreRegistration(userID, event.ID, "again")
	require.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestPreRegisterMidEventStartsToday(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 10)
	event := ts.createDailyEvent(t, testBaseTime.AddDate(0, 0, -3), end, 10)

	p, err := ts.Participation.PreRegister(uuid.NewString(), event.ID)
	require.NoError(t, err)
	require.Equal(t, ts.Clock.Today(), p.CheckinDate)
}

func TestPreRegisterRejectsSingleDayAndEndedEvents(t *testing.T) {
	ts := newTestStack(t)
	single := ts.createSingleDayEvent(t, testBaseTime)
	_, err := ts.Participation.PreRegister(uuid.NewString(), single.ID)
	require.ErrorIs(t, err, ErrEventNotOpen)

	end := testBaseTime.AddDate(0, 0, -1)
	past := ts.createDailyEvent(t, testBaseTime.AddDate(0, 0, -5), end, 10)
	_, err = ts.Participation.PreRegister(uuid.NewString(), past.ID)
	require.ErrorIs(t, err, ErrEventNotOpen)
}

func TestGetUserStatistics(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 20)
	event := ts.createDailyEvent(t, testBaseTime, end, 10)
	userID := uuid.NewString()
	staffID := uuid.NewString()

	// Two days: one completed with distance, one left to rot.
	p1, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	p1, err = ts.Participation.CheckIn(p1.JoinCode, staffID)
	require.NoError(t, err)
	distance := 10.5
	p1, err = ts.Participation.SubmitProof(p1.ID, userID, "https://cdn/d1.jpg", "h1", "", &distance)
	require.NoError(t, err)
	_, err = ts.Participation.Verify(p1.ID, staffID, true, "")
	require.NoError(t, err)

	ts.advanceDays(1)
	_, err = ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)

	stats, err := ts.Participation.GetUserStatistics(userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalEventsJoined)
	require.EqualValues(t, 1, stats.TotalEventsCompleted)
	require.InDelta(t, 10.5, stats.TotalDistanceKM, 0.001)
	require.InDelta(t, 50.0, stats.CompletionRate, 0.001)
	require.EqualValues(t, 1, stats.CurrentMonthCompletions)
}

func TestGetDailyCheckinStatsStreak(t *testing.T) {
	ts := newTestStack(t)
	end := testBaseTime.AddDate(0, 0, 20)
	event := ts.createDailyEvent(t, testBaseTime, end, 20)
	userID := uuid.NewString()
	staffID := uuid.NewString()

	attend := func() {
		p, err := ts.Participation.Join(userID, event.ID)
		require.NoError(t, err)
		_, err = ts.Participation.CheckIn(p.JoinCode, staffID)
		require.NoError(t, err)
	}

	// Day 1 attended, day 2 skipped (expired), days 3-4 attended.
	attend()
	ts.advanceDays(1)
	p2, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	ts.advanceDays(1)
	_, err = ts.Participation.Expire(p2.ID)
	require.NoError(t, err)
	attend()
	ts.advanceDays(1)
	attend()

	stats, err := ts.Participation.GetDailyCheckinStats(userID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalDaysRegistered)
	require.Equal(t, 3, stats.TotalDaysCheckedIn)
	require.Equal(t, 1, stats.TotalDaysExpired)
	require.Equal(t, 2, stats.CurrentStreak, "streak restarts after the skipped day")
}

func TestCompletionHookPanicIsContained(t *testing.T) {
	ts := newTestStack(t)
	event := ts.createSingleDayEvent(t, testBaseTime.Add(2*time.Hour))
	userID := uuid.NewString()
	staffID := uuid.NewString()

	ts.Participation.OnCompletion = func(*models.EventParticipation) {
		panic("hook bug")
	}

	p, err := ts.Participation.Join(userID, event.ID)
	require.NoError(t, err)
	p, err = ts.Participation.CheckIn(p.JoinCode, staffID)
	require.NoError(t, err)

	p, err = ts.Participation.CheckOut(p.JoinCode, staffID)
	require.NoError(t, err, "a panicking hook must not fail the transition")
	require.Equal(t, models.StatusCheckedOut, p.Status)
}
