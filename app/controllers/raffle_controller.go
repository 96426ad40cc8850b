package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rifei/backend/internal/pkg/inventory"
	"gorm.io/gorm"
)

// HandleGetRaffleNumbers returns the available/held/sold partitions of a
// raffle's numbers plus sale progress, for rendering the selection grid.
func HandleGetRaffleNumbers(c *fiber.Ctx) error {
	raffleID, err := parseRaffleID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_raffle_id", "Raffle id must be a positive integer")
	}

	raffle, err := inventoryService.GetRaffle(raffleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Raffle not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load raffle")
	}

	parts, err := inventoryService.Partitions(raffleID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load numbers")
	}

	return c.JSON(fiber.Map{
		"raffle_id":        raffle.ID,
		"title":            raffle.Title,
		"status":           raffle.Status,
		"price_cents":      raffle.PriceCents,
		"total_numbers":    raffle.TotalNumbers,
		"sold_count":       raffle.SoldCount,
		"progress_percent": raffle.ProgressPercent(),
		"numbers": fiber.Map{
			"available": parts.Available,
			"held":      parts.Held,
			"sold":      parts.Sold,
		},
	})
}

func parseRaffleID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, inventory.ErrInvalidRequest
	}
	return uint(id), nil
}
