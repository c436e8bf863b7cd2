package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/order-insights/internal/api/http/handlers"
	"github.com/spec-kit/order-insights/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sessions       *handlers.SessionHandler
	Orders         *handlers.OrdersHandler
	Rollups        *handlers.RollupsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Sessions.Login)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	authProtected.Post("/logout", cfg.Sessions.Logout)
	authProtected.Get("/me", cfg.Sessions.Me)
	authProtected.Post("/password/change", cfg.Sessions.ChangePassword)

	orders := app.Group("/orders", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	orders.Post("", auth.RequireTeamLeader(), cfg.Orders.CreateOrder)
	orders.Get("", cfg.Orders.ListOrders)
	orders.Get("/:id", cfg.Orders.GetOrder)
	orders.Patch("/:id/status", cfg.Orders.UpdateStatus)

	rollups := app.Group("/rollups", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	rollups.Get("", cfg.Rollups.ListRollups)
	rollups.Post("/refresh", cfg.Rollups.Refresh)
	rollups.Get("/:email", cfg.Rollups.GetRollup)
}
