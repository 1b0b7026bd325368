package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/database/databasetest"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway/gatewaytest"
)

type recorderStub struct {
	mu     sync.Mutex
	events []string
}

func (r *recorderStub) Record(_ context.Context, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorderStub) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	db       *gorm.DB
	repos    *repository.Repositories
	gateway  *gatewaytest.Fake
	recorder *recorderStub
	payments *PaymentService
	subs     *SubscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := databasetest.New(t)
	repos := repository.NewRepositories(db)
	fake := gatewaytest.NewFake()
	fake.AddPlan(gateway.Plan{
		ID:            "plan-pro",
		Name:          "Pro",
		Status:        "active",
		Amount:        decimal.RequireFromString("49.90"),
		Currency:      "BRL",
		Frequency:     1,
		FrequencyType: "months",
	})
	rec := &recorderStub{}
	return &fixture{
		db:       db,
		repos:    repos,
		gateway:  fake,
		recorder: rec,
		payments: NewPaymentService(repos.Payment, fake, rec),
		subs:     NewSubscriptionService(repos.Subscription, repos.Plan, fake, rec),
	}
}

func pixInput() CreatePaymentInput {
	return CreatePaymentInput{
		AccountID:     42,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "brl",
		Description:   "Premium listing",
		PaymentMethod: "pix",
		PaymentType:   "pix",
		Payer:         PayerInput{Email: "buyer@example.com"},
	}
}

func subscriptionInput(accountID uint) CreateSubscriptionInput {
	return CreateSubscriptionInput{
		AccountID:       accountID,
		PlanID:          "plan-pro",
		PaymentMethodID: "visa",
		Payer:           PayerInput{Email: "owner@example.com"},
		Card:            &CardInput{Token: "card-token"},
	}
}

func uintPtr(v uint) *uint { return &v }

func boolPtr(v bool) *bool { return &v }
