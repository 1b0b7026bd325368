package billing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Counter events recorded by the services and the webhook processor.
const (
	EventPaymentCreated      = "payment.created"
	EventPaymentCancelled    = "payment.cancelled"
	EventPaymentRefunded     = "payment.refunded"
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionExempt  = "subscription.exempted"
	EventSubscriptionEnded   = "subscription.ended"
	EventGatewayError        = "gateway.error"
	EventReconciled          = "reconcile.applied"
	EventReconcileNoop       = "reconcile.noop"
	EventWebhookReceived     = "webhook.received"
	EventWebhookRejected     = "webhook.rejected"
	EventWebhookIgnored      = "webhook.ignored"
	EventWebhookFailed       = "webhook.failed"
)

// EventRecorder counts billing outcomes. Implementations must not block the
// caller on failure.
type EventRecorder interface {
	Record(ctx context.Context, event string)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string) {}

// PayerInput identifies the person paying, as forwarded to the gateway.
type PayerInput struct {
	Email                string `json:"email" validate:"omitempty,email,max=200"`
	FirstName            string `json:"first_name" validate:"max=100"`
	LastName             string `json:"last_name" validate:"max=100"`
	IdentificationType   string `json:"identification_type" validate:"max=20"`
	IdentificationNumber string `json:"identification_number" validate:"max=40"`
}

// CardInput carries the tokenized card for card payments.
type CardInput struct {
	Token string `json:"token" validate:"max=255"`
}

// CreatePaymentInput is the request for a one-time payment.
type CreatePaymentInput struct {
	AccountID     uint            `json:"account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"required,len=3,alpha"`
	Description   string          `json:"description" validate:"max=255"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=64"`
	PaymentType   string          `json:"payment_type" validate:"required,oneof=credit_card debit_card bank_transfer pix boleto wallet subscription"`
	Installments  int             `json:"installments" validate:"omitempty,min=1,max=36"`
	Card          *CardInput      `json:"card"`
	Payer         PayerInput      `json:"payer"`
	Metadata      map[string]any  `json:"metadata"`
}

func (in *CreatePaymentInput) normalize() {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Description = strings.TrimSpace(in.Description)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.PaymentType = strings.ToLower(strings.TrimSpace(in.PaymentType))
	in.Payer.Email = strings.TrimSpace(in.Payer.Email)
	if in.Installments == 0 {
		in.Installments = 1
	}
}

func (in *CreatePaymentInput) cardToken() string {
	if in.Card == nil {
		return ""
	}
	return strings.TrimSpace(in.Card.Token)
}

// CancelInput annotates a cancellation. ActorID is the internal user that
// asked for it, if any.
type CancelInput struct {
	Reason  string `json:"reason" validate:"max=255"`
	ActorID *uint  `json:"-"`
}

// RefundInput requests a refund; a nil Amount refunds the full payment.
type RefundInput struct {
	// Amount requests a partial refund; nil refunds the full amount.
	Amount  *decimal.Decimal `json:"amount"`
	Reason  string           `json:"reason" validate:"max=255"`
	ActorID *uint            `json:"-"`
}

// CreateSubscriptionInput is the request for a recurring or exempted subscription.
type CreateSubscriptionInput struct {
	AccountID       uint           `json:"account_id" validate:"required"`
	PlanID          string         `json:"plan_id" validate:"required,max=64"`
	PaymentMethodID string         `json:"payment_method_id" validate:"max=64"`
	AutoRecurring   *bool          `json:"auto_recurring"`
	Payer           PayerInput     `json:"payer"`
	Card            *CardInput     `json:"card"`
	Metadata        map[string]any `json:"metadata"`

	IsExempted         bool   `json:"is_exempted"`
	ExemptionReason    string `json:"exemption_reason" validate:"max=255"`
	ExemptionGrantedBy *uint  `json:"exemption_granted_by"`
}

func (in *CreateSubscriptionInput) normalize() {
	in.PlanID = strings.TrimSpace(in.PlanID)
	in.PaymentMethodID = strings.ToLower(strings.TrimSpace(in.PaymentMethodID))
	in.Payer.Email = strings.TrimSpace(in.Payer.Email)
	in.ExemptionReason = strings.TrimSpace(in.ExemptionReason)
}

func (in *CreateSubscriptionInput) autoRecurring() bool {
	return in.AutoRecurring == nil || *in.AutoRecurring
}

func (in *CreateSubscriptionInput) cardToken() string {
	if in.Card == nil {
		return ""
	}
	return strings.TrimSpace(in.Card.Token)
}

// WebhookResult describes what the processor did with a notification.
type WebhookResult struct {
	Action     string `json:"action"`
	ResourceID string `json:"resource_id,omitempty"`
	Ignored    bool   `json:"ignored"`
	Status     string `json:"status,omitempty"`
}

// newMetadata copies caller supplied metadata into a fresh JSON map.
func newMetadata(src map[string]any) datatypes.JSONMap {
	md := datatypes.JSONMap{}
	for k, v := range src {
		md[k] = v
	}
	return md
}

func ensureMetadata(md datatypes.JSONMap) datatypes.JSONMap {
	if md == nil {
		return datatypes.JSONMap{}
	}
	return md
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func actorValue(actor *uint) any {
	if actor == nil {
		return nil
	}
	return *actor
}
