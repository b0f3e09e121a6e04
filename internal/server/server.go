// Package server assembles the Fiber application.
package server

import (
	"time"

	"vinted/internal/handlers"
	"vinted/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Deps are the services the HTTP layer serves.
type Deps struct {
	Auth     *services.AuthService
	Listings *services.ListingService
	Payments *services.PaymentService

	BodyLimit int
	// Quiet disables the request logger.
	Quiet bool
}

// New builds the application with every route registered.
func New(d Deps) *fiber.App {
	cfg := fiber.Config{
		AppName:      "vinted",
		ErrorHandler: handlers.ErrorHandler,
	}
	if d.BodyLimit > 0 {
		cfg.BodyLimit = d.BodyLimit
	}
	app := fiber.New(cfg)

	app.Use(recover.New())
	if !d.Quiet {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handlers.NewUserHandler(d.Auth).RegisterRoutes(app)
	handlers.NewListingHandler(d.Listings, d.Auth).RegisterRoutes(app)
	handlers.NewPaymentHandler(d.Payments).RegisterRoutes(app)

	app.Use(handlers.NotFound)
	return app
}
