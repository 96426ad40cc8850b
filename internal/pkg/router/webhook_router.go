package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rifei/backend/app/controllers"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhook)
	// The gateway probes the endpoint with GET before enabling deliveries.
	app.Get("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhookCheck)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
