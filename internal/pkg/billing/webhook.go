package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

const maxAuditPayloadBytes = 16 << 10

// WebhookProcessor authenticates gateway notifications and turns them into
// reconciliations. It never trusts state from the body: the resource is always
// re-read from the gateway, which makes redelivery harmless.
type WebhookProcessor struct {
	payments      *PaymentService
	subscriptions *SubscriptionService
	events        repository.WebhookEventRepository
	secret        string
	recorder      EventRecorder
}

// NewWebhookProcessor wires the processor. events and recorder may be nil.
func NewWebhookProcessor(payments *PaymentService, subs *SubscriptionService, events repository.WebhookEventRepository, secret string, recorder EventRecorder) *WebhookProcessor {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &WebhookProcessor{
		payments:      payments,
		subscriptions: subs,
		events:        events,
		secret:        secret,
		recorder:      recorder,
	}
}

type webhookPayload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// Handle processes one notification. topic names the endpoint it arrived on
// and is only used for the audit log; routing follows the action.
func (w *WebhookProcessor) Handle(ctx context.Context, topic string, rawBody []byte, signature string) (*WebhookResult, error) {
	w.recorder.Record(ctx, EventWebhookReceived)
	if !security.VerifyHMACSHA256(rawBody, signature, w.secret) {
		// Unsigned bodies are never stored.
		w.recorder.Record(ctx, EventWebhookRejected)
		log.Warnf("[Webhook] Rejected %s notification with invalid signature (%d bytes)", topic, len(rawBody))
		return nil, apperror.Authentication("invalid webhook signature")
	}
	event := w.audit(ctx, topic, rawBody)

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		w.finish(ctx, event, "malformed payload")
		return nil, apperror.Validation("malformed webhook payload", nil)
	}

	action := webhookAction(payload.Action, payload.Type)
	resourceID := resourceIDFrom(payload.Data.ID)
	result := &WebhookResult{Action: action, ResourceID: resourceID}
	if event != nil {
		event.Action = action
		event.ResourceID = resourceID
	}

	reconcile := w.route(action)
	if reconcile == nil {
		result.Ignored = true
		w.recorder.Record(ctx, EventWebhookIgnored)
		w.finish(ctx, event, "")
		log.Infof("[Webhook] Ignoring action %q", action)
		return result, nil
	}
	if resourceID == "" {
		w.finish(ctx, event, "missing data.id")
		return nil, apperror.Validation("webhook payload has no data.id", map[string]string{"data.id": "required"})
	}

	status, err := reconcile(ctx, resourceID)
	if err != nil {
		w.recorder.Record(ctx, EventWebhookFailed)
		w.finish(ctx, event, err.Error())
		log.Errorf("[Webhook] Reconcile of %s for %q failed: %v", resourceID, action, err)
		return nil, apperror.Internal("webhook reconciliation failed", err)
	}

	w.finish(ctx, event, "")
	result.Status = status
	return result, nil
}

type reconcileFunc func(ctx context.Context, externalID string) (string, error)

func (w *WebhookProcessor) route(action string) reconcileFunc {
	prefix := action
	if i := strings.IndexByte(action, '.'); i >= 0 {
		prefix = action[:i]
	}
	switch prefix {
	case "payment":
		return func(ctx context.Context, id string) (string, error) {
			p, err := w.payments.Reconcile(ctx, id)
			if err != nil {
				return "", err
			}
			return string(p.Status), nil
		}
	case "subscription_preapproval", "subscription", "preapproval":
		return func(ctx context.Context, id string) (string, error) {
			s, err := w.subscriptions.Reconcile(ctx, id)
			if err != nil {
				return "", err
			}
			return string(s.Status), nil
		}
	default:
		return nil
	}
}

// webhookAction derives a dotted action name. Gateways send either
// {"action":"payment.updated"} or {"type":"payment","action":"updated"}.
func webhookAction(action, typ string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	typ = strings.ToLower(strings.TrimSpace(typ))
	switch {
	case action == "":
		return typ
	case strings.Contains(action, "."), typ == "":
		return action
	default:
		return typ + "." + action
	}
}

func resourceIDFrom(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// audit stores an authenticated notification.
func (w *WebhookProcessor) audit(ctx context.Context, topic string, rawBody []byte) *models.GatewayWebhookEvent {
	if w.events == nil {
		return nil
	}
	payload := rawBody
	if len(payload) > maxAuditPayloadBytes {
		payload = payload[:maxAuditPayloadBytes]
	}
	event := &models.GatewayWebhookEvent{
		Topic:          topic,
		PayloadJSON:    string(payload),
		SignatureValid: true,
	}
	if err := w.events.Create(ctx, event); err != nil {
		log.Warnf("[Webhook] Could not write audit record: %v", err)
		return nil
	}
	return event
}

func (w *WebhookProcessor) finish(ctx context.Context, event *models.GatewayWebhookEvent, processingErr string) {
	if event == nil || w.events == nil {
		return
	}
	event.ProcessingError = processingErr
	if err := w.events.MarkProcessed(ctx, event); err != nil {
		log.Warnf("[Webhook] Could not update audit record %d: %v", event.ID, err)
	}
}
