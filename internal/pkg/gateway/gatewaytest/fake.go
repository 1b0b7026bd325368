// Package gatewaytest provides an in-memory gateway.Client for tests.
package gatewaytest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
)

// Fake keeps gateway state in memory. Newly created payments start with
// PaymentStatus and subscriptions with SubscriptionStatus. Errors registered
// with FailOn are returned by the named operation until cleared.
type Fake struct {
	mu sync.Mutex

	PaymentStatus      string
	SubscriptionStatus string

	payments      map[string]*gateway.Payment
	subscriptions map[string]*gateway.Subscription
	plans         map[string]*gateway.Plan
	failures      map[string]error
	calls         []string
	nextID        int
}

var _ gateway.Client = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		PaymentStatus:      "pending",
		SubscriptionStatus: "authorized",
		payments:           make(map[string]*gateway.Payment),
		subscriptions:      make(map[string]*gateway.Subscription),
		plans:              make(map[string]*gateway.Plan),
		failures:           make(map[string]error),
		nextID:             1000,
	}
}

// FailOn makes op return err. A nil err clears the failure.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns the operation names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how often op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *Fake) AddPlan(p gateway.Plan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plans[p.ID] = &p
}

// SetPaymentStatus changes gateway-side state the way an asynchronous event would.
func (f *Fake) SetPaymentStatus(externalID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[externalID]; ok {
		p.Status = status
	}
}

func (f *Fake) SetSubscriptionStatus(externalID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subscriptions[externalID]; ok {
		s.Status = status
	}
}

func (f *Fake) SetNextPaymentDate(externalID string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subscriptions[externalID]; ok {
		s.NextPaymentDate = &t
	}
}

// PutPayment seeds a payment that exists only on the gateway side.
func (f *Fake) PutPayment(p gateway.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = &p
}

func (f *Fake) record(op string, externalID string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.failures[op]; ok {
		return &gateway.Error{Op: op, ExternalID: externalID, Err: err}
	}
	return nil
}

func (f *Fake) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func notFound(op, id string) error {
	return &gateway.Error{Op: op, ExternalID: id, StatusCode: 404, Err: errors.New("resource not found")}
}

func (f *Fake) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_payment", ""); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &gateway.Payment{
		ID:              f.newID(),
		Status:          f.PaymentStatus,
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		CreatedAt:       &now,
	}
	f.payments[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *Fake) GetPayment(ctx context.Context, externalID string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get_payment", externalID); err != nil {
		return nil, err
	}
	p, ok := f.payments[externalID]
	if !ok {
		return nil, notFound("get_payment", externalID)
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) CancelPayment(ctx context.Context, externalID string) (*gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cancel_payment", externalID); err != nil {
		return nil, err
	}
	p, ok := f.payments[externalID]
	if !ok {
		return nil, notFound("cancel_payment", externalID)
	}
	p.Status = "cancelled"
	cp := *p
	return &cp, nil
}

func (f *Fake) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) (*gateway.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("refund_payment", externalID); err != nil {
		return nil, err
	}
	p, ok := f.payments[externalID]
	if !ok {
		return nil, notFound("refund_payment", externalID)
	}
	p.Status = "refunded"
	refunded := p.Amount
	if amount != nil {
		refunded = *amount
	}
	return &gateway.Refund{ID: f.newID(), Amount: refunded, Status: "approved"}, nil
}

func (f *Fake) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_subscription", ""); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	next := now.AddDate(0, 1, 0)
	s := &gateway.Subscription{
		ID:              "sub-" + f.newID(),
		Status:          f.SubscriptionStatus,
		PlanID:          req.PlanID,
		StartDate:       &now,
		NextPaymentDate: &next,
	}
	f.subscriptions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (f *Fake) GetSubscription(ctx context.Context, externalID string) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get_subscription", externalID); err != nil {
		return nil, err
	}
	s, ok := f.subscriptions[externalID]
	if !ok {
		return nil, notFound("get_subscription", externalID)
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) CancelSubscription(ctx context.Context, externalID string) (*gateway.Subscription, error) {
	return f.setSubscription("cancel_subscription", externalID, "cancelled")
}

func (f *Fake) PauseSubscription(ctx context.Context, externalID string) (*gateway.Subscription, error) {
	return f.setSubscription("pause_subscription", externalID, "paused")
}

func (f *Fake) ReactivateSubscription(ctx context.Context, externalID string) (*gateway.Subscription, error) {
	return f.setSubscription("reactivate_subscription", externalID, "authorized")
}

func (f *Fake) setSubscription(op, externalID, status string) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(op, externalID); err != nil {
		return nil, err
	}
	s, ok := f.subscriptions[externalID]
	if !ok {
		return nil, notFound(op, externalID)
	}
	s.Status = status
	cp := *s
	return &cp, nil
}

func (f *Fake) GetPlan(ctx context.Context, planID string) (*gateway.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get_plan", planID); err != nil {
		return nil, err
	}
	p, ok := f.plans[planID]
	if !ok {
		return nil, notFound("get_plan", planID)
	}
	cp := *p
	return &cp, nil
}
