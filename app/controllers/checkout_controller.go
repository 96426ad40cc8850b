package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/payment"
	"github.com/rifei/backend/internal/pkg/reservation"
	"github.com/rifei/backend/internal/pkg/usercontext"
	"gorm.io/gorm"
)

type createReservationRequest struct {
	RaffleID uint  `json:"raffle_id" validate:"required,min=1"`
	Numbers  []int `json:"numbers" validate:"required,min=1,dive,min=1"`
}

type createChargeRequest struct {
	Method string `json:"method" validate:"required,oneof=pix checkout"`
}

// HandleCreateReservation claims the requested numbers for the caller and
// returns the pending intent. A conflict response carries the exact
// numbers that were taken so the client can refresh its grid.
func HandleCreateReservation(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	var req createReservationRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_body", "Malformed request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	intent, err := reservationService.Reserve(req.RaffleID, userCtx.UserID, req.Numbers)
	if err != nil {
		if unavailable, ok := inventory.IsNumbersUnavailable(err); ok {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":               "numbers_unavailable",
				"message":             "Some of the selected numbers are no longer available",
				"conflicting_numbers": unavailable.Numbers,
			})
		}
		if errors.Is(err, inventory.ErrRaffleNotSelling) {
			return errorJSON(c, fiber.StatusNotFound, "raffle_not_selling", "Raffle does not exist or is not selling")
		}
		if errors.Is(err, inventory.ErrInvalidRequest) {
			return errorJSON(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to reserve numbers")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"intent_id":    intent.ID,
		"raffle_id":    intent.RaffleID,
		"numbers":      intent.Numbers(),
		"amount_cents": intent.AmountCents,
		"status":       intent.Status,
		"expires_at":   intent.ExpiresAt,
	})
}

// HandleCancelReservation releases a pending reservation on the owner's
// request.
func HandleCancelReservation(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	intentID := c.Params("intentID")
	err := reservationService.Cancel(intentID, userCtx.UserID)
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", "Reservation not found")
	case errors.Is(err, reservation.ErrNotIntentOwner):
		return errorJSON(c, fiber.StatusForbidden, "forbidden", "Reservation belongs to another user")
	case errors.Is(err, reservation.ErrAlreadyFinalized):
		return errorJSON(c, fiber.StatusConflict, "already_finalized", "Reservation already reached a final state")
	default:
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to cancel reservation")
	}
}

// HandleCreateCharge creates the gateway charge for a reserved intent:
// PIX QR data or a hosted checkout redirect.
func HandleCreateCharge(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	intentID := c.Params("intentID")
	intent, err := inventoryService.GetIntent(intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Payment intent not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payment intent")
	}
	if intent.UserID != userCtx.UserID {
		return errorJSON(c, fiber.StatusForbidden, "forbidden", "Payment intent belongs to another user")
	}

	var req createChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_body", "Malformed request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	result, err := paymentOrchestrator.CreateCharge(c.Context(), intentID, req.Method)
	switch {
	case err == nil:
		return c.JSON(result)
	case errors.Is(err, payment.ErrIntentNotPending):
		return errorJSON(c, fiber.StatusConflict, "not_pending", "Payment intent already reached a final state")
	case errors.Is(err, payment.ErrHoldExpired):
		return errorJSON(c, fiber.StatusGone, "hold_expired", "The number hold has expired")
	case errors.Is(err, payment.ErrUnsupportedMethod):
		return errorJSON(c, fiber.StatusBadRequest, "unsupported_method", "Payment method must be pix or checkout")
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return errorJSON(c, fiber.StatusBadGateway, "gateway_unavailable", "Payment gateway is unavailable")
	default:
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create charge")
	}
}

// HandleGetPayment returns the current state of one payment intent.
func HandleGetPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	intent, err := inventoryService.GetIntent(c.Params("intentID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Payment intent not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payment intent")
	}
	if intent.UserID != userCtx.UserID {
		return errorJSON(c, fiber.StatusForbidden, "forbidden", "Payment intent belongs to another user")
	}

	// Best-effort refresh of the mirrored gateway state while the charge
	// is still settling. Failures fall back to the stored snapshot.
	if !intent.IsTerminal() && intent.GatewayPaymentID() != "" {
		if _, _, err := paymentOrchestrator.LookupStatus(c.Context(), intent.ID); err == nil {
			if refreshed, err := inventoryService.GetIntent(intent.ID); err == nil {
				intent = refreshed
			}
		}
	}

	return c.JSON(fiber.Map{
		"intent_id":          intent.ID,
		"raffle_id":          intent.RaffleID,
		"numbers":            intent.Numbers(),
		"amount_cents":       intent.AmountCents,
		"fee_cents":          intent.FeeCents,
		"net_amount_cents":   intent.NetAmountCents,
		"status":             intent.Status,
		"method":             intent.Method,
		"mp_status":          intent.MPStatus,
		"mp_status_detail":   intent.MPStatusDetail,
		"pix_qr_code":        intent.PixQRCode,
		"pix_qr_code_base64": intent.PixQRCodeBase64,
		"checkout_url":       intent.CheckoutURL,
		"expires_at":         intent.ExpiresAt,
		"paid_at":            intent.PaidAt,
	})
}

// HandleListMyPayments returns the caller's checkout attempts, newest
// first.
func HandleListMyPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	intents, err := inventoryService.IntentsByUser(userCtx.UserID, 100)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payments")
	}

	items := make([]fiber.Map, 0, len(intents))
	for i := range intents {
		intent := &intents[i]
		items = append(items, fiber.Map{
			"intent_id":    intent.ID,
			"raffle_id":    intent.RaffleID,
			"numbers":      intent.Numbers(),
			"amount_cents": intent.AmountCents,
			"status":       intent.Status,
			"method":       intent.Method,
			"expires_at":   intent.ExpiresAt,
			"paid_at":      intent.PaidAt,
			"created_at":   intent.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"payments": items})
}
