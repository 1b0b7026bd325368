package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/config"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := Open(config.Database{Driver: "sqlite", DSN: "file:setup_test?mode=memory&cache=shared", AutoMigrate: true}, false)
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), db))

	for _, table := range []any{&models.Payment{}, &models.Subscription{}, &models.SubscriptionPlan{}, &models.GatewayWebhookEvent{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&models.Subscription{}, "ux_subscriptions_active_account"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle"}, false)
	assert.Error(t, err)
}
