// handlers/participation_routes.go
package handlers

import (
	"event-checkin-system/middleware"
	"event-checkin-system/models"
	"event-checkin-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupParticipationRoutes(app *fiber.App, participationService *services.ParticipationService) {
	// 🔐 All participation routes require user context from the Gateway
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Participant-facing lifecycle
	secured.Post("/events/:id/join", participationService.JoinEvent)
	secured.Post("/events/:id/pre-register", participationService.PreRegisterEvent)
	secured.Post("/events/:id/withdraw", participationService.WithdrawPreRegistration)
	secured.Get("/events/:id/daily-stats", participationService.MyDailyCheckinStats)

	secured.Get("/participations", participationService.ListMyParticipations)
	secured.Get("/participations/stats", participationService.MyStatistics)
	secured.Get("/participations/:id", participationService.GetParticipation)
	secured.Post("/participations/:id/proof", participationService.UploadProof)
	secured.Post("/participations/:id/cancel", participationService.CancelParticipation)

	// Staff-facing: scanning codes and verifying proofs
	staff := secured.Group("/staff", middleware.RequireRoles(
		string(models.RoleStaff), string(models.RoleOrganizer),
	))
	staff.Post("/check-in", participationService.CheckInByCode)
	staff.Post("/check-out", participationService.CheckOutByCode)
	staff.Post("/participations/:id/verify", participationService.VerifyProof)
	staff.Get("/events/:id/participations", participationService.ListEventParticipations)
}
