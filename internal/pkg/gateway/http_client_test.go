package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, "test-token", 2*time.Second)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientRequiresToken(t *testing.T) {
	_, err := NewHTTPClient("", "  ", 0)
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestCreatePaymentSendsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, 100.0, body["transaction_amount"])
		assert.Equal(t, "pix", body["payment_method_id"])
		assert.Equal(t, "local-1", body["external_reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 123456789, "status": "pending", "status_detail": "pending_waiting_transfer",
			"transaction_amount": 100.00, "currency_id": "BRL", "payment_method_id": "pix",
			"date_created": "2024-05-01T10:00:00.000-04:00"}`))
	})

	p, err := c.CreatePayment(context.Background(), PaymentRequest{
		ExternalReference: "local-1",
		Amount:            decimal.RequireFromString("100.00"),
		Currency:          "BRL",
		PaymentMethodID:   "pix",
		PaymentType:       "pix",
		Payer:             Payer{Email: "payer@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", p.ID)
	assert.Equal(t, "pending", p.Status)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("100")))
	require.NotNil(t, p.CreatedAt)
}

func TestGetPaymentNon2xxReturnsGatewayError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	})

	_, err := c.GetPayment(context.Background(), "42")
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "get_payment", gwErr.Op)
	assert.Equal(t, "42", gwErr.ExternalID)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.True(t, gwErr.NotFound())
}

func TestGetPaymentRejectsIncompleteResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "42"}`))
	})

	_, err := c.GetPayment(context.Background(), "42")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGetPaymentRejectsBadTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "42", "status": "approved", "date_created": "yesterday"}`))
	})

	_, err := c.GetPayment(context.Background(), "42")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRefundPaymentForwardsAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/77/refunds", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 25.5, body["amount"])
		_, _ = w.Write([]byte(`{"id": 991, "amount": 25.50, "status": "approved"}`))
	})

	amount := decimal.RequireFromString("25.50")
	refund, err := c.RefundPayment(context.Background(), "77", &amount)
	require.NoError(t, err)
	assert.Equal(t, "991", refund.ID)
	assert.True(t, refund.Amount.Equal(amount))
}

func TestCancelSubscriptionUsesPut(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/preapproval/abc", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cancelled", body["status"])
		_, _ = w.Write([]byte(`{"id": "abc", "status": "cancelled", "next_payment_date": null}`))
	})

	s, err := c.CancelSubscription(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", s.Status)
	assert.Nil(t, s.NextPaymentDate)
}

func TestGetPlanParsesAutoRecurring(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preapproval_plan/plan-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "plan-1", "reason": "Pro", "status": "active",
			"auto_recurring": {"frequency": 1, "frequency_type": "months", "transaction_amount": 49.9, "currency_id": "BRL"}}`))
	})

	plan, err := c.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "Pro", plan.Name)
	assert.Equal(t, "active", plan.Status)
	assert.Equal(t, "months", plan.FrequencyType)
	assert.True(t, plan.Amount.Equal(decimal.RequireFromString("49.90")))
}

func TestClientTimeoutIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, "token", 20*time.Millisecond)
	require.NoError(t, err)

	_, err = c.GetSubscription(context.Background(), "slow")
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "get_subscription", gwErr.Op)
}
