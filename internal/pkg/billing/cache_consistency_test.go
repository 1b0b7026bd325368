package billing

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
)

func newTestStore() *cache.Store {
	return cache.NewStore(memory.New(), time.Minute)
}

func TestCancelPaymentIgnoresStaleCacheEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payments := NewPaymentService(repository.NewCachedPaymentRepository(f.repos.Payment, newTestStore()), f.gateway, f.recorder)

	payment, err := payments.CreatePayment(ctx, pixInput())
	require.NoError(t, err)
	_, err = payments.GetPayment(ctx, payment.ID)
	require.NoError(t, err)

	// Approve behind the cache's back.
	approved := *payment
	approved.Status = models.PaymentStatusApproved
	require.NoError(t, f.repos.Payment.UpdateStatus(ctx, &approved, models.PaymentStatusPending))

	stale, err := payments.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, stale.Status)

	_, err = payments.CancelPayment(ctx, payment.ID, CancelInput{Reason: "customer request"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, 0, f.gateway.CallCount("cancel_payment"))

	fresh, err := payments.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, fresh.Status)
}

func TestPauseSubscriptionIgnoresStaleCacheEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	subs := NewSubscriptionService(repository.NewCachedSubscriptionRepository(f.repos.Subscription, newTestStore()), f.repos.Plan, f.gateway, f.recorder)

	sub, err := subs.CreateSubscription(ctx, subscriptionInput(42))
	require.NoError(t, err)
	_, err = subs.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)

	cancelled := *sub
	cancelled.Status = models.SubscriptionStatusCancelled
	require.NoError(t, f.repos.Subscription.UpdateStatus(ctx, &cancelled, sub.Status))

	_, err = subs.PauseSubscription(ctx, sub.ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, 0, f.gateway.CallCount("pause_subscription"))
}
