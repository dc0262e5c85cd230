// services/leaderboard_http.go
// Fiber surface over leaderboard config and ranking operations. Route wiring
// lives in handlers/.
package services

import (
	"time"

	"event-checkin-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type leaderboardConfigInput struct {
	EventID             string              `json:"event_id" validate:"required,uuid4"`
	Name                string              `json:"name" validate:"required,min=1,max=255"`
	Description         string              `json:"description"`
	RequiredCompletions int                 `json:"required_completions" validate:"required,min=1"`
	MaxRewardRecipients int                 `json:"max_reward_recipients" validate:"required,min=1"`
	Tiers               []models.RewardTier `json:"tiers" validate:"required,min=1,dive"`
	StartsAt            time.Time           `json:"starts_at" validate:"required"`
	EndsAt              time.Time           `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// CreateLeaderboardConfig registers the prize table for an event
// (POST /s/leaderboards).
func (s *LeaderboardService) CreateLeaderboardConfig(c *fiber.Ctx) error {
	var input leaderboardConfigInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	config := &models.RewardLeaderboardConfig{
		EventID:             input.EventID,
		Name:                input.Name,
		Description:         input.Description,
		RequiredCompletions: input.RequiredCompletions,
		MaxRewardRecipients: input.MaxRewardRecipients,
		Tiers:               datatypes.NewJSONSlice(input.Tiers),
		IsActive:            true,
		StartsAt:            input.StartsAt,
		EndsAt:              input.EndsAt,
		CreatedBy:           currentUserID(c),
	}
	if err := s.CreateConfig(config); err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(config)
}

// UpdateLeaderboardConfig edits a config in place. Finalized configs are
// immutable and answer 409.
func (s *LeaderboardService) UpdateLeaderboardConfig(c *fiber.Ctx) error {
	var input struct {
		Name                *string             `json:"name"`
		Description         *string             `json:"description"`
		RequiredCompletions *int                `json:"required_completions" validate:"omitempty,min=1"`
		MaxRewardRecipients *int                `json:"max_reward_recipients" validate:"omitempty,min=1"`
		Tiers               []models.RewardTier `json:"tiers"`
		IsActive            *bool               `json:"is_active"`
		EndsAt              *time.Time          `json:"ends_at"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&input); err != nil {
		return validationError(c, err)
	}

	config, err := s.UpdateConfig(c.Params("id"), func(cfg *models.RewardLeaderboardConfig) {
		if input.Name != nil {
			cfg.Name = *input.Name
		}
		if input.Description != nil {
			cfg.Description = *input.Description
		}
		if input.RequiredCompletions != nil {
			cfg.RequiredCompletions = *input.RequiredCompletions
		}
		if input.MaxRewardRecipients != nil {
			cfg.MaxRewardRecipients = *input.MaxRewardRecipients
		}
		if input.Tiers != nil {
			cfg.Tiers = datatypes.NewJSONSlice(input.Tiers)
		}
		if input.IsActive != nil {
			cfg.IsActive = *input.IsActive
		}
		if input.EndsAt != nil {
			cfg.EndsAt = *input.EndsAt
		}
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(config)
}

// DeleteLeaderboardConfig removes a config and its entries.
func (s *LeaderboardService) DeleteLeaderboardConfig(c *fiber.Ctx) error {
	if err := s.DeleteConfig(c.Params("id")); err != nil {
		return domainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLeaderboardConfig returns one config by id.
func (s *LeaderboardService) GetLeaderboardConfig(c *fiber.Ctx) error {
	config, err := s.GetConfig(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(config)
}

// RecalculateLeaderboard reorders provisional ranks for live display.
func (s *LeaderboardService) RecalculateLeaderboard(c *fiber.Ctx) error {
	ranked, err := s.CalculateRankings(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"ranked": ranked})
}

// FinalizeLeaderboard assigns permanent ranks and rewards, once.
func (s *LeaderboardService) FinalizeLeaderboard(c *fiber.Ctx) error {
	if err := s.Finalize(c.Params("id")); err != nil {
		return domainError(c, err)
	}
	config, err := s.GetConfig(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(config)
}

// PublicLeaderboard returns the finalized standings of an event. Before
// finalization it answers 404 so provisional ranks never leak.
func (s *LeaderboardService) PublicLeaderboard(c *fiber.Ctx) error {
	config, entries, err := s.PublicEntries(c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{
		"config":  config,
		"entries": entries,
	})
}

// ListLeaderboardEntries returns a config's entries for staff review.
// ?qualified=true narrows to qualified users only.
func (s *LeaderboardService) ListLeaderboardEntries(c *fiber.Ctx) error {
	qualifiedOnly := c.Query("qualified") == "true"
	entries, err := s.Entries(c.Params("id"), qualifiedOnly)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(entries)
}

// MyLeaderboardEntry returns the calling user's own tally on an event's
// leaderboard.
func (s *LeaderboardService) MyLeaderboardEntry(c *fiber.Ctx) error {
	entry, err := s.EntryFor(c.Params("id"), currentUserID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(entry)
}
