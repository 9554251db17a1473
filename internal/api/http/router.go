package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-manager/internal/api/http/handlers"
	"github.com/spec-kit/lead-manager/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Leads   *handlers.LeadsHandler
	Metrics fiber.Handler
}

// RegisterRoutes wires HTTP routes. Lead routes are served both under /api
// and at the root. Anything else falls through to a 404.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	registerLeadRoutes(app.Group("/api/leads"), cfg.Leads)
	registerLeadRoutes(app.Group("/leads"), cfg.Leads)

	app.Use(observability.NotFound)
}

func registerLeadRoutes(group fiber.Router, h *handlers.LeadsHandler) {
	group.Get("/", h.List)
	group.Post("/upload", h.Upload)
	group.Post("/", h.Create)
	group.Get("/:id", h.Get)
	group.Put("/:id", h.Update)
	group.Delete("/:id", h.Delete)
}
