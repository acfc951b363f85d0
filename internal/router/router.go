package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/livecast-io/livecast-api/internal/config"
	"github.com/livecast-io/livecast-api/internal/handler"
	"github.com/livecast-io/livecast-api/internal/middleware"
	"github.com/livecast-io/livecast-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoomHandler      *handler.RoomHandler
	GiftHandler      *handler.GiftHandler
	WalletHandler    *handler.WalletHandler
	AdminGiftHandler *handler.AdminGiftHandler
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.RoomHandler != nil {
		rooms := app.Group("/api/v1/rooms", jwtMiddleware, middleware.ResolveAuthorization())
		deps.RoomHandler.Register(rooms)
	}

	if deps.GiftHandler != nil {
		gifts := app.Group("/api/v1/gifts", jwtMiddleware, middleware.ResolveAuthorization(),
			middleware.RateLimit("gifts", 30, time.Minute))
		deps.GiftHandler.Register(gifts)
	}

	if deps.WalletHandler != nil {
		wallet := app.Group("/api/v1/wallet", jwtMiddleware, middleware.ResolveAuthorization())
		deps.WalletHandler.Register(wallet)
	}

	if deps.AdminGiftHandler != nil {
		admin := app.Group("/api/v1/admin/gifts", jwtMiddleware, middleware.ResolveAuthorization())
		deps.AdminGiftHandler.Register(admin)
	}
}
