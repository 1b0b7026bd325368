package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// WebhookController receives gateway notifications. The routes are not
// behind API key auth; the signature is the authentication.
type WebhookController struct {
	processor *billing.WebhookProcessor
	timeout   time.Duration
}

func NewWebhookController(processor *billing.WebhookProcessor, timeout time.Duration) *WebhookController {
	return &WebhookController{processor: processor, timeout: timeout}
}

func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	return wc.handle(c, models.WebhookTopicPayment)
}

func (wc *WebhookController) HandleSubscriptionWebhook(c *fiber.Ctx) error {
	return wc.handle(c, models.WebhookTopicSubscription)
}

// handle answers 2xx only once the notification has been applied, so the
// gateway redelivers anything that failed.
func (wc *WebhookController) handle(c *fiber.Ctx, topic string) error {
	ctx, cancel := requestContext(c, wc.timeout)
	defer cancel()

	body := append([]byte(nil), c.Body()...)
	result, err := wc.processor.Handle(ctx, topic, body, c.Get(SignatureHeader))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true, "result": result})
}
