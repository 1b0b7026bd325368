package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
)

func TestSweeperRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.subs.CreateSubscription(ctx, exemptedInput(42))
	require.NoError(t, err)

	old := &models.GatewayWebhookEvent{
		Topic:       models.WebhookTopicPayment,
		PayloadJSON: "{}",
		ReceivedAt:  time.Now().UTC().AddDate(0, 0, -60),
	}
	require.NoError(t, f.repos.WebhookEvent.Create(ctx, old))

	sweeper := NewSweeper(f.subs, f.repos.WebhookEvent, time.Hour, 30*24*time.Hour)
	sweeper.now = func() time.Time { return time.Now().UTC().AddDate(0, 2, 0) }

	ended, purged, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)
	assert.EqualValues(t, 1, purged)

	stored, err := f.repos.Subscription.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusEnded, stored.Status)
}

func TestSweeperStartRunsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.subs.CreateSubscription(ctx, exemptedInput(42))
	require.NoError(t, err)

	sweeper := NewSweeper(f.subs, nil, time.Hour, 0)
	sweeper.now = func() time.Time { return time.Now().UTC().AddDate(1, 0, 0) }
	sweeper.Start()
	sweeper.Start()
	sweeper.Stop()
	sweeper.Stop()

	stored, err := f.repos.Subscription.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusEnded, stored.Status)
}
