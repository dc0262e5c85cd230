// services/participation_http.go
// Fiber surface over the participation lifecycle. Route wiring lives in
// handlers/.
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"

	"event-checkin-system/utils"

	"github.com/gofiber/fiber/v2"
)

// JoinEvent registers the calling user for an event (POST /s/events/:id/join).
func (s *ParticipationService) JoinEvent(c *fiber.Ctx) error {
	userID := currentUserID(c)
	eventID := c.Params("id")

	participation, err := s.Join(userID, eventID)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(participation)
}

// PreRegisterEvent reserves the user's first daily slot of a multi-day event.
func (s *ParticipationService) PreRegisterEvent(c *fiber.Ctx) error {
	userID := currentUserID(c)
	eventID := c.Params("id")

	participation, err := s.PreRegister(userID, eventID)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(participation)
}

// WithdrawPreRegistration cancels every unused joined record the user holds
// for the event.
func (s *ParticipationService) WithdrawPreRegistration(c *fiber.Ctx) error {
	userID := currentUserID(c)
	eventID := c.Params("id")

	var input struct {
		Reason string `json:"reason" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	cancelled, err := s.CancelPreRegistration(userID, eventID, input.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"cancelled": cancelled})
}

// CheckInByCode marks attendance for whoever holds the join code. The actor
// is the staff member scanning, not the participant.
func (s *ParticipationService) CheckInByCode(c *fiber.Ctx) error {
	actorID := currentUserID(c)

	var input struct {
		JoinCode string `json:"join_code" validate:"required,len=5,numeric"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	participation, err := s.CheckIn(input.JoinCode, actorID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// CheckOutByCode records a checked-out completion for walk-up style events
// that skip the proof step.
func (s *ParticipationService) CheckOutByCode(c *fiber.Ctx) error {
	actorID := currentUserID(c)

	var input struct {
		JoinCode string `json:"join_code" validate:"required,len=5,numeric"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	participation, err := s.CheckOut(input.JoinCode, actorID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// UploadProof accepts the participant's proof image plus optional activity
// metadata as multipart form data.
func (s *ParticipationService) UploadProof(c *fiber.Ctx) error {
	userID := currentUserID(c)
	participationID := c.Params("id")

	proofFile, err := c.FormFile("proof_image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proof_image is required"})
	}
	if proofFile.Size > 10*1024*1024 { // 10MB
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file too large (max 10MB)"})
	}

	f, err := proofFile.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read proof image"})
	}
	hasher := sha256.New()
	_, copyErr := io.Copy(hasher, f)
	f.Close()
	if copyErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read proof image"})
	}
	imageHash := hex.EncodeToString(hasher.Sum(nil))

	imageURL, err := utils.UploadProofImage(proofFile, participationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload proof image"})
	}

	var distanceKM *float64
	if raw := c.FormValue("distance_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "distance_km must be a non-negative number"})
		}
		distanceKM = &v
	}

	participation, err := s.SubmitProof(participationID, userID, imageURL, imageHash, c.FormValue("activity_link"), distanceKM)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// VerifyProof approves or rejects a submitted proof (staff only).
func (s *ParticipationService) VerifyProof(c *fiber.Ctx) error {
	actorID := currentUserID(c)
	participationID := c.Params("id")

	var input struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	participation, err := s.Verify(participationID, actorID, input.Approved, input.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// CancelParticipation voids a record the calling user owns. A reason is
// mandatory.
func (s *ParticipationService) CancelParticipation(c *fiber.Ctx) error {
	userID := currentUserID(c)
	participationID := c.Params("id")

	var input struct {
		Reason string `json:"reason" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	participation, err := s.Cancel(participationID, userID, input.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// GetParticipation returns one record by id.
func (s *ParticipationService) GetParticipation(c *fiber.Ctx) error {
	participation, err := s.GetByID(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participation)
}

// ListMyParticipations returns the calling user's records, newest first.
func (s *ParticipationService) ListMyParticipations(c *fiber.Ctx) error {
	participations, err := s.ListByUser(currentUserID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participations)
}

// ListEventParticipations returns every record of an event (staff only).
func (s *ParticipationService) ListEventParticipations(c *fiber.Ctx) error {
	participations, err := s.ListByEvent(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(participations)
}

// MyStatistics returns the calling user's aggregate attendance numbers.
func (s *ParticipationService) MyStatistics(c *fiber.Ctx) error {
	stats, err := s.GetUserStatistics(currentUserID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(stats)
}

// MyDailyCheckinStats returns the calling user's per-event daily counters
// and streak for a multi-day event.
func (s *ParticipationService) MyDailyCheckinStats(c *fiber.Ctx) error {
	stats, err := s.GetDailyCheckinStats(currentUserID(c), c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(stats)
}
