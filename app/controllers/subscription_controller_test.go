package controllers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

func proSubscription(accountID uint) map[string]any {
	return map[string]any{
		"account_id":        accountID,
		"plan_id":           "plan-pro",
		"payment_method_id": "visa",
		"payer":             map[string]any{"email": "owner@example.com"},
		"card":              map[string]any{"token": "card-token"},
	}
}

func TestHandleSubscriptionLifecycle(t *testing.T) {
	f := newAPIFixture(t, security.RoleClient)

	status, created := f.do(t, fiber.MethodPost, "/subscriptions", proSubscription(42), nil)
	require.Equal(t, fiber.StatusCreated, status, created)
	id := created["id"].(string)
	assert.Equal(t, "AUTHORIZED", created["status"])

	status, body := f.do(t, fiber.MethodPost, "/subscriptions", proSubscription(42), nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, 1, f.gateway.CallCount("create_subscription"))

	status, body = f.do(t, fiber.MethodPost, "/subscriptions/"+id+"/pause", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "PAUSED", body["status"])

	status, body = f.do(t, fiber.MethodPost, "/subscriptions/"+id+"/reactivate", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ACTIVE", body["status"])

	status, body = f.do(t, fiber.MethodPost, "/subscriptions/"+id+"/cancel", map[string]any{"reason": "moving"}, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "CANCELLED", body["status"])

	status, body = f.do(t, fiber.MethodGet, "/subscriptions?account_id=42", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestHandleCreateExemptedSubscriptionNeedsCapability(t *testing.T) {
	f := newAPIFixture(t, security.RoleSupport)

	in := proSubscription(42)
	in["is_exempted"] = true
	in["exemption_reason"] = "partner"
	status, body := f.do(t, fiber.MethodPost, "/subscriptions", in, map[string]string{"X-Actor-ID": "3"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])
	assert.Zero(t, f.gateway.CallCount("get_plan"))
}

func TestHandleCreateExemptedSubscription(t *testing.T) {
	f := newAPIFixture(t, security.RoleAdmin)

	in := proSubscription(42)
	in["is_exempted"] = true
	in["exemption_reason"] = "partner"
	status, body := f.do(t, fiber.MethodPost, "/subscriptions", in, map[string]string{"X-Actor-ID": "3"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "ACTIVE", body["status"])
	assert.Equal(t, true, body["is_exempted"])
	assert.EqualValues(t, 3, body["exemption_granted_by"])
	assert.Zero(t, f.gateway.CallCount("create_subscription"))

	// Without an acting user there is no one to record as grantor.
	status, body = f.do(t, fiber.MethodPost, "/subscriptions", func() map[string]any {
		in := proSubscription(43)
		in["is_exempted"] = true
		in["exemption_reason"] = "partner"
		return in
	}(), nil)
	require.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "required", body["fields"].(map[string]any)["exemption_granted_by"])
}

func TestHandleGetSubscriptionNotFound(t *testing.T) {
	f := newAPIFixture(t, security.RoleClient)

	status, _ := f.do(t, fiber.MethodGet, "/subscriptions/missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
