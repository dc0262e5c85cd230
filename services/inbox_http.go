// services/inbox_http.go
// Fiber surface for notifications and monthly reward history.
package services

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ListMyNotifications returns the calling user's inbox, newest first.
// ?unread=true narrows to unread rows, ?limit=N caps the page (default 50).
func (s *NotificationService) ListMyNotifications(c *fiber.Ctx) error {
	unreadOnly := c.Query("unread") == "true"
	limit := c.QueryInt("limit", 50)

	notifications, err := s.ListForUser(currentUserID(c), unreadOnly, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list notifications"})
	}
	return c.JSON(notifications)
}

// MarkNotificationsRead marks the given notification ids as read. Only the
// caller's own rows are touched.
func (s *NotificationService) MarkNotificationsRead(c *fiber.Ctx) error {
	var input struct {
		IDs []string `json:"ids" validate:"required,min=1,dive,uuid4"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	updated, err := s.MarkRead(currentUserID(c), input.IDs, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to mark notifications read"})
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// ListMyRewards returns the calling user's earned monthly rewards.
func (s *RewardService) ListMyRewards(c *fiber.Ctx) error {
	rewards, err := s.ListUserRewards(currentUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list rewards"})
	}
	return c.JSON(rewards)
}

// RecheckMyRewards re-runs the monthly threshold evaluation for the caller.
// Handy after a backfilled verification.
func (s *RewardService) RecheckMyRewards(c *fiber.Ctx) error {
	awarded, err := s.CheckAndAwardRewards(currentUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to evaluate rewards"})
	}
	return c.JSON(fiber.Map{"awarded": awarded})
}
