package controllers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

func TestHandlePaymentWebhook(t *testing.T) {
	f := newAPIFixture(t, security.RoleClient)

	_, created := f.do(t, fiber.MethodPost, "/payments", pixPayment(), nil)
	f.gateway.SetPaymentStatus("1001", "approved")

	body := `{"action":"payment.updated","data":{"id":"1001"}}`
	status, resp := f.do(t, fiber.MethodPost, "/payments/webhook", body, map[string]string{
		SignatureHeader: "sha256=" + security.SignHMACSHA256([]byte(body), testSecret),
	})
	require.Equal(t, fiber.StatusOK, status, resp)
	assert.Equal(t, true, resp["received"])
	assert.Equal(t, "APPROVED", resp["result"].(map[string]any)["status"])

	_, got := f.do(t, fiber.MethodGet, "/payments/"+created["id"].(string), nil, nil)
	assert.Equal(t, "APPROVED", got["status"])
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := newAPIFixture(t, security.RoleClient)

	status, resp := f.do(t, fiber.MethodPost, "/subscriptions/webhook",
		`{"action":"subscription_preapproval.updated","data":{"id":"sub-1"}}`,
		map[string]string{SignatureHeader: "bogus"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", resp["error"])
}

func TestHandleWebhookUnknownResourceAsksForRetry(t *testing.T) {
	f := newAPIFixture(t, security.RoleClient)

	body := `{"action":"payment.updated","data":{"id":"4040"}}`
	status, resp := f.do(t, fiber.MethodPost, "/payments/webhook", body, map[string]string{
		SignatureHeader: security.SignHMACSHA256([]byte(body), testSecret),
	})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal error", resp["message"])
}
