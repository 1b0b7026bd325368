package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	if h.handlers.Admin == nil {
		return
	}
	admin := app.Group("/admin",
		middleware.APIKeyAuthMiddleware(h.opts.APIKeys),
		middleware.RequireCapability(security.CapAdminStats),
	)
	admin.Get("/stats", h.handlers.Admin.HandleStats)
	admin.Get("/monitor", monitor.New(monitor.Config{Title: "PayFox Monitor"}))
}
