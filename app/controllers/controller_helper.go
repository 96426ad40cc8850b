package controllers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/payment"
	"github.com/rifei/backend/internal/pkg/reservation"
)

var (
	inventoryService    *inventory.Service
	reservationService  *reservation.Service
	paymentOrchestrator *payment.Orchestrator
	webhookReconciler   *payment.Reconciler

	validate = validator.New()
)

// SetupServices wires the controllers against their services. Must be
// called once before the router installs any handler.
func SetupServices(inv *inventory.Service, resv *reservation.Service, orch *payment.Orchestrator, rec *payment.Reconciler) {
	inventoryService = inv
	reservationService = resv
	paymentOrchestrator = orch
	webhookReconciler = rec
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}
