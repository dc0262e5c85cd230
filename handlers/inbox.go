// handlers/inbox_routes.go
package handlers

import (
	"event-checkin-system/middleware"
	"event-checkin-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupInboxRoutes(app *fiber.App, notificationService *services.NotificationService, rewardService *services.RewardService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/notifications", notificationService.ListMyNotifications)
	secured.Post("/notifications/read", notificationService.MarkNotificationsRead)

	secured.Get("/rewards", rewardService.ListMyRewards)
	secured.Post("/rewards/recheck", rewardService.RecheckMyRewards)
}
