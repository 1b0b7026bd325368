package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the typed boundary to the external payment gateway. Methods never
// retry; every failure comes back as *Error.
type Client interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, externalID string) (*Payment, error)
	CancelPayment(ctx context.Context, externalID string) (*Payment, error)
	RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*Refund, error)

	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)
	GetSubscription(ctx context.Context, externalID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, externalID string) (*Subscription, error)
	PauseSubscription(ctx context.Context, externalID string) (*Subscription, error)
	ReactivateSubscription(ctx context.Context, externalID string) (*Subscription, error)

	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

type Payer struct {
	Email                string
	FirstName            string
	LastName             string
	IdentificationType   string
	IdentificationNumber string
}

type PaymentRequest struct {
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	PaymentMethodID   string
	PaymentType       string
	Installments      int
	CardToken         string
	Payer             Payer
	IdempotencyKey    string
}

// Payment is the normalized gateway view of a payment. Status is the raw
// gateway string; callers translate it with MapPaymentStatus.
type Payment struct {
	ID              string
	Status          string
	StatusDetail    string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	CreatedAt       *time.Time
	ApprovedAt      *time.Time
}

type Refund struct {
	ID     string
	Amount decimal.Decimal
	Status string
}

type SubscriptionRequest struct {
	ExternalReference string
	PlanID            string
	Reason            string
	PayerEmail        string
	CardToken         string
	PaymentMethodID   string
	Amount            decimal.Decimal
	Currency          string
	Frequency         int
	FrequencyType     string
	AutoRecurring     bool
	IdempotencyKey    string
}

type Subscription struct {
	ID              string
	Status          string
	PlanID          string
	StartDate       *time.Time
	EndDate         *time.Time
	NextPaymentDate *time.Time
}

type Plan struct {
	ID            string
	Name          string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	Frequency     int
	FrequencyType string
}

// Error wraps a transport failure, a rejected request or an unparseable
// response together with the operation and external id it concerns.
type Error struct {
	Op         string
	ExternalID string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := "gateway " + e.Op
	if e.ExternalID != "" {
		msg += " [" + e.ExternalID + "]"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports whether the gateway answered 404 for the resource.
func (e *Error) NotFound() bool {
	return e.StatusCode == 404
}
