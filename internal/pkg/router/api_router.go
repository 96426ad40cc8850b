package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/rifei/backend/app/controllers"
	"github.com/rifei/backend/internal/pkg/usercontext"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(), usercontext.Middleware())

	api.Get("/raffles/:id/numbers", controllers.HandleGetRaffleNumbers)

	api.Post("/reservations", controllers.HandleCreateReservation)
	api.Delete("/reservations/:intentID", controllers.HandleCancelReservation)

	api.Post("/checkout/:intentID", controllers.HandleCreateCharge)
	api.Get("/payments/:intentID", controllers.HandleGetPayment)
	api.Get("/payments", controllers.HandleListMyPayments)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
