package billing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

const testWebhookSecret = "whsec_test"

type webhookFixture struct {
	*fixture
	processor *WebhookProcessor
	auditLog  func() []models.GatewayWebhookEvent
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := newFixture(t)
	return &webhookFixture{
		fixture:   f,
		processor: NewWebhookProcessor(f.payments, f.subs, f.repos.WebhookEvent, testWebhookSecret, f.recorder),
		auditLog: func() []models.GatewayWebhookEvent {
			var events []models.GatewayWebhookEvent
			require.NoError(t, f.db.Order("id").Find(&events).Error)
			return events
		},
	}
}

func (w *webhookFixture) deliver(topic, body string) (*WebhookResult, error) {
	raw := []byte(body)
	return w.processor.Handle(context.Background(), topic, raw, security.SignHMACSHA256(raw, testWebhookSecret))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	w := newWebhookFixture(t)

	_, err := w.processor.Handle(context.Background(), models.WebhookTopicPayment,
		[]byte(`{"action":"payment.updated","data":{"id":"1001"}}`), "sha256=deadbeef")
	require.Error(t, err)
	assert.Equal(t, apperror.KindAuthentication, apperror.KindOf(err))
	assert.Empty(t, w.gateway.Calls())

	assert.Empty(t, w.auditLog())
	assert.Equal(t, 1, w.recorder.count(EventWebhookRejected))
}

func TestWebhookBadSignatureStoresNoPayload(t *testing.T) {
	w := newWebhookFixture(t)
	ctx := context.Background()
	body := []byte(`{"action":"payment.updated","data":{"id":"1001"},"padding":"` + strings.Repeat("x", 4096) + `"}`)

	for i := 0; i < 5; i++ {
		_, err := w.processor.Handle(ctx, models.WebhookTopicPayment, body, "")
		require.Error(t, err)
	}
	assert.Empty(t, w.auditLog())

	result, err := w.deliver(models.WebhookTopicPayment, `{"action":"merchant_order.created","data":{"id":"55"}}`)
	require.NoError(t, err)
	require.True(t, result.Ignored)
	events := w.auditLog()
	require.Len(t, events, 1)
	assert.True(t, events[0].SignatureValid)
	assert.Contains(t, events[0].PayloadJSON, "merchant_order.created")
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	w := newWebhookFixture(t)
	ctx := context.Background()

	payment, err := w.payments.CreatePayment(ctx, pixInput())
	require.NoError(t, err)
	w.gateway.SetPaymentStatus(*payment.ExternalID, "approved")

	body := `{"action":"payment.updated","data":{"id":"` + *payment.ExternalID + `"}}`
	for i := 0; i < 2; i++ {
		result, err := w.deliver(models.WebhookTopicPayment, body)
		require.NoError(t, err)
		assert.Equal(t, "payment.updated", result.Action)
		assert.Equal(t, string(models.PaymentStatusApproved), result.Status)
	}

	items, total, err := w.repos.Payment.List(ctx, repository.PaymentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.PaymentStatusApproved, items[0].Status)

	events := w.auditLog()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.SignatureValid)
		assert.NotNil(t, e.ProcessedAt)
		assert.Empty(t, e.ProcessingError)
		assert.Equal(t, *payment.ExternalID, e.ResourceID)
	}
}

func TestWebhookNumericIDAndSplitAction(t *testing.T) {
	w := newWebhookFixture(t)
	ctx := context.Background()

	payment, err := w.payments.CreatePayment(ctx, pixInput())
	require.NoError(t, err)
	w.gateway.SetPaymentStatus(*payment.ExternalID, "rejected")

	result, err := w.deliver(models.WebhookTopicPayment, `{"type":"payment","action":"updated","data":{"id":1001}}`)
	require.NoError(t, err)
	assert.Equal(t, "payment.updated", result.Action)
	assert.Equal(t, "1001", result.ResourceID)
	assert.Equal(t, string(models.PaymentStatusRejected), result.Status)
}

func TestWebhookSubscriptionUpdate(t *testing.T) {
	w := newWebhookFixture(t)
	ctx := context.Background()

	sub, err := w.subs.CreateSubscription(ctx, subscriptionInput(42))
	require.NoError(t, err)
	w.gateway.SetSubscriptionStatus(*sub.ExternalID, "paused")

	result, err := w.deliver(models.WebhookTopicSubscription,
		`{"action":"subscription_preapproval.updated","data":{"id":"`+*sub.ExternalID+`"}}`)
	require.NoError(t, err)
	assert.Equal(t, string(models.SubscriptionStatusPaused), result.Status)
}

func TestWebhookIgnoresUnknownAction(t *testing.T) {
	w := newWebhookFixture(t)

	result, err := w.deliver(models.WebhookTopicPayment, `{"action":"merchant_order.created","data":{"id":"55"}}`)
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Empty(t, w.gateway.Calls())
	assert.Equal(t, 1, w.recorder.count(EventWebhookIgnored))
}

func TestWebhookMalformedPayload(t *testing.T) {
	w := newWebhookFixture(t)

	_, err := w.deliver(models.WebhookTopicPayment, `{"action":`)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = w.deliver(models.WebhookTopicPayment, `{"action":"payment.updated","data":{}}`)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Empty(t, w.gateway.Calls())
}

func TestWebhookUnknownPaymentFailsForRetry(t *testing.T) {
	w := newWebhookFixture(t)

	_, err := w.deliver(models.WebhookTopicPayment, `{"action":"payment.created","data":{"id":"9999"}}`)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, 1, w.recorder.count(EventWebhookFailed))

	events := w.auditLog()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ProcessingError)
}

func TestWebhookAction(t *testing.T) {
	tests := []struct {
		action, typ, want string
	}{
		{"payment.updated", "", "payment.updated"},
		{"updated", "payment", "payment.updated"},
		{"", "subscription_preapproval", "subscription_preapproval"},
		{" Payment.Created ", "payment", "payment.created"},
		{"created", "", "created"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, webhookAction(tt.action, tt.typ), "%q/%q", tt.action, tt.typ)
	}
}
