package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

type ApiRouter struct {
	handlers Handlers
	opts     Options
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	if h.opts.RateLimit > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        h.opts.RateLimit,
			Expiration: time.Minute,
			Storage:    h.opts.LimiterStorage,
			// Webhooks have their own limiter below.
			Next: func(c *fiber.Ctx) bool {
				return strings.HasSuffix(c.Path(), "/webhook")
			},
			LimitReached: rateLimited,
		}))
	}

	v1 := api.Group("/v1")

	// Webhooks are registered before the authenticated groups so the API
	// key middleware never runs for them.
	if wc := h.handlers.Webhooks; wc != nil {
		guard := h.webhookLimiter()
		v1.Post("/payments/webhook", guard, wc.HandlePaymentWebhook)
		v1.Post("/subscriptions/webhook", guard, wc.HandleSubscriptionWebhook)
	}

	auth := middleware.APIKeyAuthMiddleware(h.opts.APIKeys)
	can := middleware.RequireCapability

	if pc := h.handlers.Payments; pc != nil {
		payments := v1.Group("/payments", auth)
		payments.Post("/", can(security.CapPaymentsWrite), pc.HandleCreatePayment)
		payments.Get("/", can(security.CapPaymentsRead), pc.HandleListPayments)
		payments.Get("/:id", can(security.CapPaymentsRead), pc.HandleGetPayment)
		payments.Post("/:id/cancel", can(security.CapPaymentsWrite), pc.HandleCancelPayment)
		payments.Post("/:id/refund", can(security.CapPaymentsRefund), pc.HandleRefundPayment)
	}

	if sc := h.handlers.Subscriptions; sc != nil {
		subs := v1.Group("/subscriptions", auth)
		subs.Post("/", can(security.CapSubscriptionsWrite), sc.HandleCreateSubscription)
		subs.Get("/", can(security.CapSubscriptionsRead), sc.HandleListSubscriptions)
		subs.Get("/:id", can(security.CapSubscriptionsRead), sc.HandleGetSubscription)
		subs.Post("/:id/cancel", can(security.CapSubscriptionsWrite), sc.HandleCancelSubscription)
		subs.Post("/:id/pause", can(security.CapSubscriptionsWrite), sc.HandlePauseSubscription)
		subs.Post("/:id/reactivate", can(security.CapSubscriptionsWrite), sc.HandleReactivateSubscription)
	}
}

func NewApiRouter(handlers Handlers, opts Options) *ApiRouter {
	return &ApiRouter{handlers: handlers, opts: opts}
}

// webhookLimiter only counts failed deliveries, so forged or unsigned
// requests are throttled while the gateway is not.
func (h ApiRouter) webhookLimiter() fiber.Handler {
	if h.opts.WebhookRejectLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:                    h.opts.WebhookRejectLimit,
		Expiration:             time.Minute,
		Storage:                h.opts.LimiterStorage,
		SkipSuccessfulRequests: true,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "webhook:" + c.IP()
		},
		LimitReached: rateLimited,
	})
}

func rateLimited(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "rate_limited",
		"message": "too many requests",
	})
}
