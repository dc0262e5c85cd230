package services

import (
	"errors"
	"log"
	"time"

	"event-checkin-system/models"
	"event-checkin-system/utils"

	"gorm.io/gorm"
)

// ParticipationService owns the attendance record state machine. Every
// transition runs its guards and writes inside a transaction; the partial
// unique indexes on event_participations back up the read-then-check paths
// against concurrent callers.
type ParticipationService struct {
	DB            *gorm.DB
	Clock         *utils.ReferenceClock
	Codes         *CodeGenerator
	Notifications *NotificationService

	// OnCompletion fires after a participation reaches COMPLETED or
	// CHECKED_OUT. Wired to the leaderboard and monthly reward trackers in
	// main; failures there never roll back the transition.
	OnCompletion func(p *models.EventParticipation)
}

func NewParticipationService(db *gorm.DB, clock *utils.ReferenceClock, codes *CodeGenerator, notifications *NotificationService) *ParticipationService {
	return &ParticipationService{
		DB:            db,
		Clock:         clock,
		Codes:         codes,
		Notifications: notifications,
	}
}

func (s *ParticipationService) eventByID(tx *gorm.DB, eventID string) (*models.Event, error) {
	var event models.Event
	if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// CountChargedRecords is the single quota evaluator shared by Join and the
// daily unlock job. It counts every non-cancelled record the user ever held
// for the event: EXPIRED rows still consumed a slot.
func (s *ParticipationService) CountChargedRecords(tx *gorm.DB, userID, eventID string) (int64, error) {
	var count int64
	err := tx.Model(&models.EventParticipation{}).
		Where("user_id = ? AND event_id = ? AND status <> ?", userID, eventID, models.StatusCancelled).
		Count(&count).Error
	return count, err
}

func (s *ParticipationService) checkQuota(tx *gorm.DB, event *models.Event, userID string) error {
	if event.MaxCheckinsPerUser == nil {
		return nil
	}
	count, err := s.CountChargedRecords(tx, userID, event.ID)
	if err != nil {
		return err
	}
	if count >= int64(*event.MaxCheckinsPerUser) {
		return ErrQuotaExceeded
	}
	return nil
}

// Join registers the user for an event and issues today's attendance code.
//
// Single-day events keep one record per user for the whole event; a cancelled
// record is reactivated with a fresh code instead of inserting a duplicate.
// Multi-day events with daily check-in get one record per calendar day, up to
// the per-user quota.
func (s *ParticipationService) Join(userID, eventID string) (*models.EventParticipation, error) {
	var participation *models.EventParticipation
	var event *models.Event

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = s.eventByID(tx, eventID)
		if err != nil {
			return err
		}
		if !event.IsActive || !event.IsPublished {
			return ErrEventNotOpen
		}

		today := s.Clock.Today()
		if today.After(models.DayOf(event.EndDate(), s.Clock.Location)) {
			return ErrEventNotOpen
		}

		if event.IsMultiDay() && event.AllowDailyCheckin {
			participation, err = s.joinDaily(tx, event, userID, today)
		} else {
			participation, err = s.joinSingle(tx, event, userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.NotifyEventJoined(userID, event.ID, participation.ID, event.Title, participation.JoinCode)
	return participation, nil
}

func (s *ParticipationService) joinSingle(tx *gorm.DB, event *models.Event, userID string) (*models.EventParticipation, error) {
	var existing []models.EventParticipation
	err := tx.Where("user_id = ? AND event_id = ?", userID, event.ID).
		Order("joined_at DESC").Find(&existing).Error
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Status != models.StatusCancelled {
			return nil, ErrDuplicateRegistration
		}
	}

	code, err := s.Codes.NextJoinCode(tx)
	if err != nil {
		return nil, err
	}

	// Reactivate the most recent cancelled record rather than piling up rows.
	if len(existing) > 0 {
		p := existing[0]
		p.Status = models.StatusJoined
		p.JoinCode = code
		p.JoinedAt = s.Clock.Now().UTC()
		p.CancellationReason = ""
		p.CancelledAt = nil
		if err := tx.Save(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}

	p := models.EventParticipation{
		UserID:      userID,
		EventID:     event.ID,
		JoinCode:    code,
		Status:      models.StatusJoined,
		CheckinDate: models.DayOf(event.StartsAt, s.Clock.Location),
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ParticipationService) joinDaily(tx *gorm.DB, event *models.Event, userID string, today time.Time) (*models.EventParticipation, error) {
	if !event.RunsOn(today, s.Clock.Location) {
		return nil, ErrEventNotOpen
	}

	var count int64
	err := tx.Model(&models.EventParticipation{}).
		Where("user_id = ? AND event_id = ? AND checkin_date = ? AND status <> ?",
			userID, event.ID, today, models.StatusCancelled).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateRegistration
	}

	if err := s.checkQuota(tx, event, userID); err != nil {
		return nil, err
	}

	code, err := s.Codes.NextJoinCode(tx)
	if err != nil {
		return nil, err
	}

	expiresAt := s.Clock.EndOfDay(today)
	p := models.EventParticipation{
		UserID:        userID,
		EventID:       event.ID,
		JoinCode:      code,
		Status:        models.StatusJoined,
		CheckinDate:   today,
		CodeExpiresAt: &expiresAt,
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// PreRegister signs a user up for a multi-day event once; the daily unlock
// job then issues a fresh code every morning. The first code is dated
// max(event start, today).
func (s *ParticipationService) PreRegister(userID, eventID string) (*models.EventParticipation, error) {
	var participation *models.EventParticipation
	var event *models.Event

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = s.eventByID(tx, eventID)
		if err != nil {
			return err
		}
		if !event.IsMultiDay() {
			return ErrEventNotOpen
		}

		var count int64
		err = tx.Model(&models.EventParticipation{}).
			Where("user_id = ? AND event_id = ? AND status <> ?", userID, eventID, models.StatusCancelled).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateRegistration
		}

		today := s.Clock.Today()
		eventStart := models.DayOf(event.StartsAt, s.Clock.Location)
		eventEnd := models.DayOf(event.EndDate(), s.Clock.Location)
		if today.After(eventEnd) {
			return ErrEventNotOpen
		}

		firstDay := eventStart
		if today.After(firstDay) {
			firstDay = today
		}

		code, err := s.Codes.NextJoinCode(tx)
		if err != nil {
			return err
		}

		expiresAt := s.Clock.EndOfDay(firstDay)
		p := models.EventParticipation{
			UserID:        userID,
			EventID:       eventID,
			JoinCode:      code,
			Status:        models.StatusJoined,
			CheckinDate:   firstDay,
			CodeExpiresAt: &expiresAt,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		participation = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.NotifyEventJoined(userID, event.ID, participation.ID, event.Title, participation.JoinCode)
	return participation, nil
}

// CancelPreRegistration cancels every unused JOINED code the user holds for
// the event, so the unlock job stops issuing new ones.
func (s *ParticipationService) CancelPreRegistration(userID, eventID, reason string) (int64, error) {
	if reason == "" {
		reason = "cancelled by user"
	}
	now := s.Clock.Now().UTC()
	res := s.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND event_id = ? AND status = ? AND code_used = ?",
			userID, eventID, models.StatusJoined, false).
		Updates(map[string]interface{}{
			"status":              models.StatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrParticipationNotFound
	}
	return res.RowsAffected, nil
}

// CheckIn redeems an attendance code. Only a live JOINED code works; a code
// past its expiry is flipped to EXPIRED on the spot.
func (s *ParticipationService) CheckIn(joinCode, actorID string) (*models.EventParticipation, error) {
	var participation models.EventParticipation
	stale := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Event").
			Where("join_code = ? AND status NOT IN ?", joinCode,
				[]models.ParticipationStatus{models.StatusCancelled, models.StatusExpired}).
			First(&participation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return err
		}

		now := s.Clock.Now().UTC()
		if participation.IsCodeExpired(now) {
			// Commit the expiry flip; returning an error here would roll
			// it back and leave the stale record live forever.
			stale = true
			participation.Status = models.StatusExpired
			return tx.Save(&participation).Error
		}

		next, ok := models.NextStatus(participation.Status, models.ActionCheckIn)
		if !ok || participation.CodeUsed {
			return ErrInvalidOrExpiredCode
		}

		participation.Status = next
		participation.CodeUsed = true
		participation.CheckedInBy = &actorID
		participation.CheckedInAt = &now
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, ErrInvalidOrExpiredCode
	}

	if participation.Event != nil {
		s.Notifications.NotifyCheckInSuccess(participation.UserID, participation.EventID, participation.ID, participation.Event.Title)
	}
	return &participation, nil
}

// SubmitProof attaches proof to a checked-in participation, or resubmits
// after a rejection.
func (s *ParticipationService) SubmitProof(participationID, userID, imageURL, imageHash, activityLink string, distanceKM *float64) (*models.EventParticipation, error) {
	var participation models.EventParticipation
	resubmission := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Event").First(&participation, "id = ?", participationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipationNotFound
		}
		if err != nil {
			return err
		}
		if participation.UserID != userID {
			return ErrNotOwner
		}

		next, ok := models.NextStatus(participation.Status, models.ActionSubmitProof)
		if !ok {
			return ErrInvalidStateTransition
		}
		resubmission = participation.Status == models.StatusRejected

		now := s.Clock.Now().UTC()
		participation.Status = next
		participation.ProofImageURL = imageURL
		participation.ProofImageHash = imageHash
		participation.ActivityLink = activityLink
		participation.DistanceKM = distanceKM
		participation.ProofSubmittedAt = &now
		if resubmission {
			participation.RejectionReason = ""
			participation.RejectedBy = nil
			participation.RejectedAt = nil
		}
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}

	if participation.Event != nil {
		s.Notifications.NotifyProofSubmitted(participation.UserID, participation.EventID, participation.ID, participation.Event.Title, resubmission)
	}
	return &participation, nil
}

// Verify approves or rejects a submitted proof. Approval completes the
// record and assigns a completion code; rejection sends it back for another
// attempt with the stored reason.
func (s *ParticipationService) Verify(participationID, actorID string, approved bool, reason string) (*models.EventParticipation, error) {
	var participation models.EventParticipation
	var completionCode string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Event").First(&participation, "id = ?", participationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipationNotFound
		}
		if err != nil {
			return err
		}

		action := models.ActionReject
		if approved {
			action = models.ActionApprove
		}
		next, ok := models.NextStatus(participation.Status, action)
		if !ok {
			return ErrInvalidStateTransition
		}

		now := s.Clock.Now().UTC()
		participation.Status = next
		if approved {
			completionCode, err = s.Codes.NextCompletionCode(tx)
			if err != nil {
				return err
			}
			participation.CompletionCode = &completionCode
			participation.CompletedBy = &actorID
			participation.CompletedAt = &now
		} else {
			if reason == "" {
				reason = "no reason given"
			}
			participation.RejectionReason = reason
			participation.RejectedBy = &actorID
			participation.RejectedAt = &now
		}
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}

	if participation.Event != nil {
		if approved {
			s.Notifications.NotifyCompletionApproved(participation.UserID, participation.EventID, participation.ID, participation.Event.Title, completionCode)
		} else {
			s.Notifications.NotifyCompletionRejected(participation.UserID, participation.EventID, participation.ID, participation.Event.Title, participation.RejectionReason)
		}
	}
	if approved {
		s.fireCompletion(&participation)
	}
	return &participation, nil
}

// CheckOut closes a checked-in participation for events that do not require
// photographic proof.
func (s *ParticipationService) CheckOut(joinCode, actorID string) (*models.EventParticipation, error) {
	var participation models.EventParticipation

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Event").
			Where("join_code = ? AND status NOT IN ?", joinCode,
				[]models.ParticipationStatus{models.StatusCancelled, models.StatusExpired}).
			First(&participation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return err
		}

		next, ok := models.NextStatus(participation.Status, models.ActionCheckOut)
		if !ok {
			return ErrInvalidStateTransition
		}

		now := s.Clock.Now().UTC()
		participation.Status = next
		participation.CheckedOutBy = &actorID
		participation.CheckedOutAt = &now
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}

	if participation.Event != nil {
		s.Notifications.NotifyCheckOutSuccess(participation.UserID, participation.EventID, participation.ID, participation.Event.Title)
	}
	s.fireCompletion(&participation)
	return &participation, nil
}

// Cancel lets the owning user withdraw a participation that has not reached
// an end state. A reason is mandatory.
func (s *ParticipationService) Cancel(participationID, userID, reason string) (*models.EventParticipation, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var participation models.EventParticipation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Event").First(&participation, "id = ?", participationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipationNotFound
		}
		if err != nil {
			return err
		}
		if participation.UserID != userID {
			return ErrNotOwner
		}

		next, ok := models.NextStatus(participation.Status, models.ActionCancel)
		if !ok {
			return ErrInvalidStateTransition
		}

		now := s.Clock.Now().UTC()
		participation.Status = next
		participation.CancellationReason = reason
		participation.CancelledAt = &now
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}

	if participation.Event != nil {
		s.Notifications.NotifyCancelled(participation.UserID, participation.EventID, participation.ID, participation.Event.Title)
	}
	return &participation, nil
}

// Expire is the system-only transition for a single stale record. Records
// dated today or later are never expired.
func (s *ParticipationService) Expire(participationID string) (*models.EventParticipation, error) {
	var participation models.EventParticipation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&participation, "id = ?", participationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipationNotFound
		}
		if err != nil {
			return err
		}

		if !participation.CheckinDate.Before(s.Clock.Today()) {
			return ErrInvalidStateTransition
		}
		next, ok := models.NextStatus(participation.Status, models.ActionExpire)
		if !ok {
			return ErrInvalidStateTransition
		}

		participation.Status = next
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

func (s *ParticipationService) fireCompletion(p *models.EventParticipation) {
	if s.OnCompletion == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ completion hook panicked for participation %s: %v", p.ID, r)
		}
	}()
	s.OnCompletion(p)
}

// GetByID loads one participation with its event.
func (s *ParticipationService) GetByID(participationID string) (*models.EventParticipation, error) {
	var participation models.EventParticipation
	err := s.DB.Preload("Event").First(&participation, "id = ?", participationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

// ListByUser returns the user's participation history, newest first.
func (s *ParticipationService) ListByUser(userID string) ([]models.EventParticipation, error) {
	var participations []models.EventParticipation
	err := s.DB.Preload("Event").
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&participations).Error
	return participations, err
}

// ListByEvent returns every participation for an event, newest first.
func (s *ParticipationService) ListByEvent(eventID string) ([]models.EventParticipation, error) {
	var participations []models.EventParticipation
	err := s.DB.Where("event_id = ?", eventID).
		Order("joined_at DESC").
		Find(&participations).Error
	return participations, err
}

// UserStatistics is the per-user aggregate consumed by the profile screen.
type UserStatistics struct {
	UserID                  string  `json:"user_id"`
	TotalEventsJoined       int64   `json:"total_events_joined"`
	TotalEventsCompleted    int64   `json:"total_events_completed"`
	TotalDistanceKM         float64 `json:"total_distance_km"`
	CompletionRate          float64 `json:"completion_rate"`
	CurrentMonthCompletions int64   `json:"current_month_completions"`
}

// GetUserStatistics aggregates a user's attendance history.
func (s *ParticipationService) GetUserStatistics(userID string) (*UserStatistics, error) {
	stats := &UserStatistics{UserID: userID}

	err := s.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND status <> ?", userID, models.StatusCancelled).
		Count(&stats.TotalEventsJoined).Error
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Count(&stats.TotalEventsCompleted).Error
	if err != nil {
		return nil, err
	}

	var distance *float64
	err = s.DB.Model(&models.EventParticipation{}).
		Select("SUM(distance_km)").
		Where("user_id = ? AND status = ? AND distance_km IS NOT NULL", userID, models.StatusCompleted).
		Scan(&distance).Error
	if err != nil {
		return nil, err
	}
	if distance != nil {
		stats.TotalDistanceKM = *distance
	}

	if stats.TotalEventsJoined > 0 {
		stats.CompletionRate = float64(stats.TotalEventsCompleted) / float64(stats.TotalEventsJoined) * 100
	}

	now := s.Clock.Now().In(s.Clock.Location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.Clock.Location)
	err = s.DB.Model(&models.EventParticipation{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, models.StatusCompleted, monthStart).
		Count(&stats.CurrentMonthCompletions).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DailyCheckinStats summarizes one user's daily attendance on one event.
type DailyCheckinStats struct {
	UserID              string `json:"user_id"`
	EventID             string `json:"event_id"`
	TotalDaysRegistered int    `json:"total_days_registered"`
	TotalDaysCheckedIn  int    `json:"total_days_checked_in"`
	TotalDaysExpired    int    `json:"total_days_expired"`
	CurrentStreak       int    `json:"current_streak"`
}

// GetDailyCheckinStats computes attendance counters and the current streak
// of consecutive attended days ending today.
func (s *ParticipationService) GetDailyCheckinStats(userID, eventID string) (*DailyCheckinStats, error) {
	var participations []models.EventParticipation
	err := s.DB.Where("user_id = ? AND event_id = ?", userID, eventID).
		Order("checkin_date DESC").
		Find(&participations).Error
	if err != nil {
		return nil, err
	}

	stats := &DailyCheckinStats{UserID: userID, EventID: eventID}
	expected := s.Clock.Today()
	streakBroken := false

	for _, p := range participations {
		if p.Status != models.StatusCancelled {
			stats.TotalDaysRegistered++
		}
		switch {
		case p.Status.CountsAsCheckin():
			stats.TotalDaysCheckedIn++
		case p.Status == models.StatusExpired:
			stats.TotalDaysExpired++
		}

		if streakBroken || !p.Status.CountsAsCheckin() {
			continue
		}
		if p.CheckinDate.Equal(expected) {
			stats.CurrentStreak++
			expected = expected.AddDate(0, 0, -1)
		} else if p.CheckinDate.Before(expected) {
			streakBroken = true
		}
	}

	return stats, nil
}
