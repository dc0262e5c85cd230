// handlers/leaderboard_routes.go
package handlers

import (
	"event-checkin-system/middleware"
	"event-checkin-system/models"
	"event-checkin-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	// 🔓 Public route — finalized standings only, no user context needed
	app.Get("/events/:id/leaderboard", leaderboardService.PublicLeaderboard)

	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Get("/events/:id/leaderboard/me", leaderboardService.MyLeaderboardEntry)

	// Organizer-only config management
	admin := secured.Group("/leaderboards", middleware.RequireRoles(string(models.RoleOrganizer)))
	admin.Post("/", leaderboardService.CreateLeaderboardConfig)
	admin.Get("/:id", leaderboardService.GetLeaderboardConfig)
	admin.Patch("/:id", leaderboardService.UpdateLeaderboardConfig)
	admin.Delete("/:id", leaderboardService.DeleteLeaderboardConfig)
	admin.Get("/:id/entries", leaderboardService.ListLeaderboardEntries)
	admin.Post("/:id/recalculate", leaderboardService.RecalculateLeaderboard)
	admin.Post("/:id/finalize", leaderboardService.FinalizeLeaderboard)
}
