package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers bundles the controllers the routes dispatch to.
type Handlers struct {
	Payments      *controllers.PaymentController
	Subscriptions *controllers.SubscriptionController
	Webhooks      *controllers.WebhookController
	Admin         *controllers.AdminController
}

type Options struct {
	// APIKeys maps API keys to role names.
	APIKeys map[string]string
	// RateLimit is the per-client request budget per minute on /api; zero
	// disables the limiter.
	RateLimit int
	// WebhookRejectLimit is the per-client budget of failed webhook
	// deliveries per minute; zero disables it.
	WebhookRejectLimit int
	// LimiterStorage backs the limiters; nil keeps counts in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, h Handlers, opts Options) {
	// The HTTP router installs the caller context middleware every other
	// route depends on, so it goes first.
	setup(app, NewHttpRouter(h, opts), NewApiRouter(h, opts))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
