package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/database/databasetest"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway/gatewaytest"
	"github.com/ManuelReschke/PayFox/internal/pkg/health"
	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

const testSecret = "whsec_controller"

type staticStats map[string]int64

func (s staticStats) Snapshot(context.Context) (map[string]int64, error) {
	return s, nil
}

type apiFixture struct {
	app     *fiber.App
	gateway *gatewaytest.Fake
	repos   *repository.Repositories
}

// newAPIFixture mounts the controllers on a bare app. Requests carry the
// capabilities of role.
func newAPIFixture(t *testing.T, role security.Role) *apiFixture {
	t.Helper()
	db := databasetest.New(t)
	repos := repository.NewRepositories(db)
	fake := gatewaytest.NewFake()
	fake.AddPlan(gateway.Plan{
		ID: "plan-pro", Name: "Pro", Status: "active",
		Amount: decimal.RequireFromString("49.90"), Currency: "BRL", Frequency: 1, FrequencyType: "months",
	})

	payments := billing.NewPaymentService(repos.Payment, fake, nil)
	subs := billing.NewSubscriptionService(repos.Subscription, repos.Plan, fake, nil)
	processor := billing.NewWebhookProcessor(payments, subs, repos.WebhookEvent, testSecret, nil)

	checker := health.NewChecker(time.Second)
	checker.Register("database", health.DatabaseCheck(db))

	pc := NewPaymentController(payments, time.Second)
	sc := NewSubscriptionController(subs, time.Second)
	wc := NewWebhookController(processor, time.Second)
	ac := NewAdminController(checker, staticStats{"payment.created": 3}, time.Second)

	app := fiber.New()
	app.Use(middleware.UserContextMiddleware)
	app.Post("/payments/webhook", wc.HandlePaymentWebhook)
	app.Post("/subscriptions/webhook", wc.HandleSubscriptionWebhook)
	app.Get("/health", ac.HandleHealth)

	authed := app.Group("", middleware.APIKeyAuthMiddleware(map[string]string{"test-key": string(role)}))
	authed.Get("/stats", ac.HandleStats)
	authed.Post("/payments", pc.HandleCreatePayment)
	authed.Get("/payments", pc.HandleListPayments)
	authed.Get("/payments/:id", pc.HandleGetPayment)
	authed.Post("/payments/:id/cancel", pc.HandleCancelPayment)
	authed.Post("/payments/:id/refund", pc.HandleRefundPayment)
	authed.Post("/subscriptions", sc.HandleCreateSubscription)
	authed.Get("/subscriptions", sc.HandleListSubscriptions)
	authed.Get("/subscriptions/:id", sc.HandleGetSubscription)
	authed.Post("/subscriptions/:id/cancel", sc.HandleCancelSubscription)
	authed.Post("/subscriptions/:id/pause", sc.HandlePauseSubscription)
	authed.Post("/subscriptions/:id/reactivate", sc.HandleReactivateSubscription)

	return &apiFixture{app: app, gateway: fake, repos: repos}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", "test-key")
	if reader != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func pixPayment() map[string]any {
	return map[string]any{
		"account_id":     42,
		"amount":         "100.00",
		"currency":       "BRL",
		"payment_method": "pix",
		"payment_type":   "pix",
		"payer":          map[string]any{"email": "buyer@example.com"},
	}
}
