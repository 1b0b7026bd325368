package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
)

// HttpRouter serves the routes outside /api: readiness and admin.
type HttpRouter struct {
	handlers Handlers
	opts     Options
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply the caller context middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(handlers Handlers, opts Options) *HttpRouter {
	return &HttpRouter{handlers: handlers, opts: opts}
}
