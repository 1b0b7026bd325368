package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/database/databasetest"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
)

type mockGateway struct {
	mock.Mock
}

var _ gateway.Client = (*mockGateway)(nil)

func (m *mockGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) GetPayment(ctx context.Context, id string) (*gateway.Payment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) CancelPayment(ctx context.Context, id string) (*gateway.Payment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func (m *mockGateway) RefundPayment(ctx context.Context, id string, amount *decimal.Decimal) (*gateway.Refund, error) {
	args := m.Called(ctx, id, amount)
	r, _ := args.Get(0).(*gateway.Refund)
	return r, args.Error(1)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*gateway.Subscription)
	return s, args.Error(1)
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*gateway.Subscription, error) {
	return m.subscriptionCall(ctx, id)
}

func (m *mockGateway) CancelSubscription(ctx context.Context, id string) (*gateway.Subscription, error) {
	return m.subscriptionCall(ctx, id)
}

func (m *mockGateway) PauseSubscription(ctx context.Context, id string) (*gateway.Subscription, error) {
	return m.subscriptionCall(ctx, id)
}

func (m *mockGateway) ReactivateSubscription(ctx context.Context, id string) (*gateway.Subscription, error) {
	return m.subscriptionCall(ctx, id)
}

func (m *mockGateway) subscriptionCall(ctx context.Context, id string) (*gateway.Subscription, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*gateway.Subscription)
	return s, args.Error(1)
}

func (m *mockGateway) GetPlan(ctx context.Context, id string) (*gateway.Plan, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*gateway.Plan)
	return p, args.Error(1)
}

func TestCreatePaymentUsesLocalIDAsIdempotencyKey(t *testing.T) {
	repos := repository.NewRepositories(databasetest.New(t))
	gw := &mockGateway{}
	svc := NewPaymentService(repos.Payment, gw, nil)

	var sent gateway.PaymentRequest
	gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req gateway.PaymentRequest) bool {
		return req.Currency == "BRL" && req.PaymentMethodID == "pix"
	})).Run(func(args mock.Arguments) {
		sent = args.Get(1).(gateway.PaymentRequest)
	}).Return(&gateway.Payment{ID: "555", Status: "in_process", StatusDetail: "pending_waiting_transfer"}, nil).Once()

	payment, err := svc.CreatePayment(context.Background(), pixInput())
	require.NoError(t, err)
	gw.AssertExpectations(t)

	assert.Equal(t, payment.ID, sent.IdempotencyKey)
	assert.Equal(t, payment.ID, sent.ExternalReference)
	assert.Equal(t, "pending_waiting_transfer", payment.Metadata["gateway_status_detail"])
}

func TestReconcileGatewayLookupFailure(t *testing.T) {
	repos := repository.NewRepositories(databasetest.New(t))
	gw := &mockGateway{}
	svc := NewSubscriptionService(repos.Subscription, repos.Plan, gw, nil)

	gw.On("GetSubscription", mock.Anything, "sub-1").
		Return(nil, &gateway.Error{Op: "get_subscription", StatusCode: 503, Err: errors.New("unavailable")}).Once()

	_, err := svc.Reconcile(context.Background(), "sub-1")
	require.Error(t, err)
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
	gw.AssertExpectations(t)
}
