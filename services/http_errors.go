package services

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

// domainError maps service sentinels to an HTTP response. Anything unmapped
// is a 500 with a generic body so internals never leak to clients.
func domainError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrParticipationNotFound),
		errors.Is(err, ErrConfigMissing):
		status = fiber.StatusNotFound
		message = err.Error()
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = fiber.StatusNotFound
		message = "not found"
	case errors.Is(err, ErrDuplicateRegistration),
		errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrInvalidStateTransition):
		status = fiber.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrNotOwner):
		status = fiber.StatusForbidden
		message = err.Error()
	case errors.Is(err, ErrEventNotOpen),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrInvalidOrExpiredCode),
		errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrTooEarly),
		errors.Is(err, ErrTierOverlap),
		errors.Is(err, ErrTierQuantityExceeded):
		status = fiber.StatusBadRequest
		message = err.Error()
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed on field '" + verrs[0].Field() + "' (" + verrs[0].Tag() + ")",
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed"})
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
