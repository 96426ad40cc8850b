package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/internal/pkg/payment"
)

// HandleMercadoPagoWebhook processes payment notifications. The response
// codes steer the gateway's retry behavior: 2xx stops retries, anything
// else schedules a redelivery.
func HandleMercadoPagoWebhook(c *fiber.Ctx) error {
	delivery := payment.WebhookDelivery{
		Body:            c.Body(),
		SignatureHeader: c.Get("x-signature"),
		RequestID:       c.Get("x-request-id"),
	}

	result, err := webhookReconciler.Process(c.Context(), delivery)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{
			"received":  true,
			"duplicate": result.Duplicate,
			"ignored":   result.Ignored,
		})
	case errors.Is(err, payment.ErrUnauthenticatedWebhook):
		return errorJSON(c, fiber.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
	case errors.Is(err, payment.ErrAmountMismatch):
		// The intent stays pending for manual review.
		log.Errorf("[Webhook] Amount mismatch: %v", err)
		return errorJSON(c, fiber.StatusConflict, "amount_mismatch", "Charged amount does not match the reservation")
	default:
		log.Errorf("[Webhook] Processing failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Webhook processing failed")
	}
}

// HandleMercadoPagoWebhookCheck answers the gateway's liveness probe.
func HandleMercadoPagoWebhookCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
