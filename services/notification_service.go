package services

import (
	"fmt"
	"log"
	"time"

	"event-checkin-system/models"

	"gorm.io/gorm"
)

// NotificationService writes in-app inbox rows. Every Notify* call is
// fire-and-forget: a failed insert is logged and never bubbles up into the
// state transition that triggered it.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) notify(n *models.Notification) {
	if err := s.DB.Create(n).Error; err != nil {
		log.Printf("❌ Failed to create %s notification for user %s: %v", n.Type, n.UserID, err)
	}
}

func (s *NotificationService) NotifyEventJoined(userID, eventID, participationID, eventTitle, joinCode string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationEventJoined,
		Title:           "Registration confirmed",
		Message:         fmt.Sprintf("You are registered for '%s'. Your attendance code is %s.", eventTitle, joinCode),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyCheckInSuccess(userID, eventID, participationID, eventTitle string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationCheckInSuccess,
		Title:           "Checked in",
		Message:         fmt.Sprintf("Checked in to '%s'. Good luck out there!", eventTitle),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyCheckOutSuccess(userID, eventID, participationID, eventTitle string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationCheckOutSuccess,
		Title:           "Checked out",
		Message:         fmt.Sprintf("Checked out of '%s'. See you next time!", eventTitle),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyProofSubmitted(userID, eventID, participationID, eventTitle string, resubmission bool) {
	typ := models.NotificationProofSubmitted
	title := "Proof submitted"
	if resubmission {
		typ = models.NotificationProofResubmitted
		title = "Proof resubmitted"
	}
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            typ,
		Title:           title,
		Message:         fmt.Sprintf("Your proof for '%s' is waiting for staff review.", eventTitle),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyCompletionApproved(userID, eventID, participationID, eventTitle, completionCode string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationCompletionApproved,
		Title:           "Completion approved 🎉",
		Message:         fmt.Sprintf("Your run for '%s' is complete! Completion code: %s", eventTitle, completionCode),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyCompletionRejected(userID, eventID, participationID, eventTitle, reason string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationCompletionRejected,
		Title:           "Proof rejected",
		Message:         fmt.Sprintf("Your proof for '%s' was rejected: %s. You can resubmit.", eventTitle, reason),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyCancelled(userID, eventID, participationID, eventTitle string) {
	s.notify(&models.Notification{
		UserID:          userID,
		Type:            models.NotificationCancelled,
		Title:           "Participation cancelled",
		Message:         fmt.Sprintf("Your participation in '%s' has been cancelled.", eventTitle),
		EventID:         &eventID,
		ParticipationID: &participationID,
	})
}

func (s *NotificationService) NotifyRewardEarned(userID, rewardID, rewardName string) {
	s.notify(&models.Notification{
		UserID:   userID,
		Type:     models.NotificationRewardEarned,
		Title:    "Reward earned 🏆",
		Message:  fmt.Sprintf("Congratulations! You earned '%s'.", rewardName),
		RewardID: &rewardID,
	})
}

// ListForUser returns the user's inbox, newest first.
func (s *NotificationService) ListForUser(userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := s.DB.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flags the given notifications as read, scoped to the owner.
func (s *NotificationService) MarkRead(userID string, ids []string, readAt time.Time) (int64, error) {
	res := s.DB.Model(&models.Notification{}).
		Where("id IN ? AND user_id = ? AND is_read = ?", ids, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
	return res.RowsAffected, res.Error
}
