package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	if h.handlers.Admin != nil {
		app.Get("/health", h.handlers.Admin.HandleHealth)
	}
}
