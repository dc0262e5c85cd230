// services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"event-checkin-system/models"
	"event-checkin-system/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// SchedulerService runs the three daily rotation jobs in the reference
// timezone: unlock fresh codes at 00:00, expire yesterday's leftovers at
// 00:05, finalize ended single-day leaderboards at 00:10. Each job is
// idempotent and runs in singleton mode so a slow run never overlaps the
// next trigger.
type SchedulerService struct {
	DB             *gorm.DB
	Clock          *utils.ReferenceClock
	Participations *ParticipationService
	Leaderboards   *LeaderboardService
	Notifications  *NotificationService
	Codes          *CodeGenerator

	// PerEventTimeout bounds each event's processing inside a job so one
	// stuck event cannot starve the batch.
	PerEventTimeout time.Duration

	sched gocron.Scheduler
}

func NewSchedulerService(db *gorm.DB, clock *utils.ReferenceClock, participations *ParticipationService, leaderboards *LeaderboardService, notifications *NotificationService, codes *CodeGenerator) *SchedulerService {
	return &SchedulerService{
		DB:              db,
		Clock:           clock,
		Participations:  participations,
		Leaderboards:    leaderboards,
		Notifications:   notifications,
		Codes:           codes,
		PerEventTimeout: 2 * time.Minute,
	}
}

// Start registers the cron jobs and launches the scheduler goroutines.
func (s *SchedulerService) Start() error {
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(s.Clock.Location),
		gocron.WithClock(s.Clock.Clock),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		cron string
		run  func(context.Context) error
	}{
		{"auto-unlock", "0 0 * * *", s.RunUnlock},
		{"auto-expire", "5 0 * * *", s.RunExpire},
		{"auto-finalize", "10 0 * * *", s.RunFinalize},
	}

	for _, job := range jobs {
		job := job
		_, err := sched.NewJob(
			gocron.CronJob(job.cron, false),
			gocron.NewTask(func() {
				if err := job.run(context.Background()); err != nil {
					log.Printf("❌ [Scheduler] %s run failed: %v", job.name, err)
				}
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
	}

	sched.Start()
	s.sched = sched
	log.Println("⏰ Daily rotation scheduler started")
	log.Println("   🔓 auto-unlock:   00:00")
	log.Println("   🔒 auto-expire:   00:05")
	log.Println("   🏁 auto-finalize: 00:10")
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *SchedulerService) Stop() {
	if s.sched == nil {
		return
	}
	if err := s.sched.Shutdown(); err != nil {
		log.Printf("❌ Scheduler shutdown error: %v", err)
	}
}

// activeMultiDayEvents lists published multi-day events running today.
func (s *SchedulerService) activeMultiDayEvents(ctx context.Context, today time.Time) ([]models.Event, error) {
	dayStart := s.Clock.StartOfDay(today)
	dayEnd := s.Clock.EndOfDay(today)

	var events []models.Event
	err := s.DB.WithContext(ctx).
		Where("event_type = ? AND is_active = ? AND is_published = ?", models.EventTypeMultiDay, true, true).
		Where("starts_at <= ?", dayEnd).
		Where("COALESCE(ends_at, starts_at) >= ?", dayStart).
		Find(&events).Error
	return events, err
}

// RunUnlock issues today's attendance codes for every pre-registered user of
// every active multi-day event. Safe to re-run: users who already hold a
// record dated today are skipped, and the quota counts every non-cancelled
// record ever issued, so an expired code still consumed its slot.
func (s *SchedulerService) RunUnlock(ctx context.Context) error {
	today := s.Clock.Today()
	log.Println("🔓 Starting auto-unlock for multi-day events...")

	events, err := s.activeMultiDayEvents(ctx, today)
	if err != nil {
		return fmt.Errorf("auto-unlock: listing active events: %w", err)
	}
	if len(events) == 0 {
		log.Println("   ℹ️ No active multi-day events")
		return nil
	}

	for i := range events {
		event := events[i]
		eventCtx, cancel := context.WithTimeout(ctx, s.PerEventTimeout)
		created, err := s.unlockEvent(eventCtx, &event, today)
		cancel()
		if err != nil {
			// Log and keep going; the next tick retries this event.
			log.Printf("   ❌ Event '%s': unlock failed: %v", event.Title, err)
			continue
		}
		log.Printf("   ✅ Event '%s': created %d new codes", event.Title, created)
	}

	log.Println("🔓 Auto-unlock completed")
	return nil
}

func (s *SchedulerService) unlockEvent(ctx context.Context, event *models.Event, today time.Time) (int, error) {
	var userIDs []string
	err := s.DB.WithContext(ctx).
		Model(&models.EventParticipation{}).
		Distinct("user_id").
		Where("event_id = ? AND status <> ?", event.ID, models.StatusCancelled).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	created := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			err := tx.Model(&models.EventParticipation{}).
				Where("user_id = ? AND event_id = ? AND checkin_date = ? AND status <> ?",
					userID, event.ID, today, models.StatusCancelled).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			if event.MaxCheckinsPerUser != nil {
				total, err := s.Participations.CountChargedRecords(tx, userID, event.ID)
				if err != nil {
					return err
				}
				if total >= int64(*event.MaxCheckinsPerUser) {
					return nil
				}
			}

			code, err := s.Codes.NextJoinCode(tx)
			if err != nil {
				return err
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
				return err
			}
			created++
			return nil
		})
		if err != nil {
			log.Printf("   ⚠️ Event '%s': user %s unlock skipped: %v", event.Title, userID, err)
		}
	}
	return created, nil
}

// RunExpire sweeps every record dated strictly before today that has not
// reached an end state. It runs after unlock so freshly issued today-records
// are never caught.
func (s *SchedulerService) RunExpire(ctx context.Context) error {
	today := s.Clock.Today()
	log.Println("🔒 Starting auto-expire for stale records...")

	expirable := []models.ParticipationStatus{
		models.StatusJoined,
		models.StatusCheckedIn,
		models.StatusProofSubmitted,
		models.StatusRejected,
	}

	var stale []models.EventParticipation
	err := s.DB.WithContext(ctx).
		Where("checkin_date < ? AND status IN ?", today, expirable).
		Find(&stale).Error
	if err != nil {
		return fmt.Errorf("auto-expire: selecting stale records: %w", err)
	}
	if len(stale) == 0 {
		log.Println("   ℹ️ No records to expire")
		return nil
	}

	ids := make([]string, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}

	res := s.DB.WithContext(ctx).
		Model(&models.EventParticipation{}).
		Where("id IN ? AND status IN ?", ids, expirable).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return fmt.Errorf("auto-expire: updating records: %w", res.Error)
	}

	for i := range stale {
		p := stale[i]
		s.Notifications.notify(&models.Notification{
			UserID:          p.UserID,
			Type:            models.NotificationCodeExpired,
			Title:           "Attendance code expired",
			Message:         fmt.Sprintf("Your code %s was not used and has expired.", p.JoinCode),
			EventID:         &p.EventID,
			ParticipationID: &p.ID,
		})
	}

	log.Printf("🔒 Auto-expire completed: %d records expired", res.RowsAffected)
	return nil
}

// RunFinalize closes out leaderboards for single-day events that have ended.
func (s *SchedulerService) RunFinalize(ctx context.Context) error {
	log.Println("🏁 Starting auto-finalize sweep...")
	finalized, err := s.Leaderboards.FinalizeDueEvents(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("auto-finalize: %w", err)
	}
	log.Printf("🏁 Auto-finalize completed: %d leaderboards finalized", finalized)
	return nil
}
