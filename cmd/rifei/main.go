package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rifei/backend/app/controllers"
	"github.com/rifei/backend/internal/pkg/cache"
	"github.com/rifei/backend/internal/pkg/database"
	"github.com/rifei/backend/internal/pkg/env"
	"github.com/rifei/backend/internal/pkg/events"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/notify"
	"github.com/rifei/backend/internal/pkg/payment"
	"github.com/rifei/backend/internal/pkg/reservation"
	"github.com/rifei/backend/internal/pkg/router"
)

func main() {
	app, sweeper := NewApplication()
	sweeper.Start()

	// Graceful shutdown: let in-flight webhooks and the sweep finish.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		sweeper.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *reservation.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	emitter := events.NewRedisEmitter(cache.GetClient())
	gateway := payment.NewMercadoPagoClientFromEnv()
	notifier := notify.NewNotifier(db)

	inventoryService := inventory.NewServiceFromDB(db, emitter)
	reservationService := reservation.NewService(inventoryService, 0)
	orchestrator := payment.NewOrchestratorFromDB(db, gateway)
	reconciler := payment.NewReconciler(
		payment.NewRepository(db),
		gateway,
		inventoryService,
		notifier,
		env.GetEnv("MP_WEBHOOK_SECRET", ""),
	)
	sweeper := reservation.NewManager(inventoryService, reconciler, notifier, 0)

	controllers.SetupServices(inventoryService, reservationService, orchestrator, reconciler)

	app := fiber.New(fiber.Config{
		AppName: "rifei",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ROUTER
	router.InstallRouter(app)

	return app, sweeper
}
