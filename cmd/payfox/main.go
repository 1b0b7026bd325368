package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/config"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
	"github.com/ManuelReschke/PayFox/internal/pkg/health"
	"github.com/ManuelReschke/PayFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PayFox/internal/pkg/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	app, shutdown, err := NewApplication(cfg)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			log.Errorf("[Main] Listener stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[Main] Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Main] HTTP shutdown: %v", err)
	}
	shutdown()
}

// NewApplication wires the stores, the gateway client and the billing
// services into a fiber app. The returned func releases everything the app
// holds and must run after the listener has stopped.
func NewApplication(cfg *config.Config) (*fiber.App, func(), error) {
	db, err := database.Open(cfg.Database, cfg.App.IsDev())
	if err != nil {
		return nil, nil, err
	}

	rdb := cache.NewRedisClient(cfg.Cache)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = cache.Ping(pingCtx, rdb)
	cancel()
	if err != nil {
		return nil, nil, err
	}
	storage := cache.NewRedisStorage(cfg.Cache)
	store := cache.NewStore(storage, cfg.Cache.TTL)

	gw, err := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.AccessToken, cfg.Gateway.Timeout)
	if err != nil {
		return nil, nil, err
	}

	repos := repository.NewFactory(db, store).GetRepositories()
	counters := counter.New(rdb, counter.DefaultKey)

	payments := billing.NewPaymentService(repos.Payment, gw, counters)
	subscriptions := billing.NewSubscriptionService(repos.Subscription, repos.Plan, gw, counters)
	processor := billing.NewWebhookProcessor(payments, subscriptions, repos.WebhookEvent, cfg.Webhook.Secret, counters)
	sweeper := billing.NewSweeper(subscriptions, repos.WebhookEvent, cfg.App.SweepInterval, cfg.Webhook.Retention)

	checker := health.NewChecker(2 * time.Second)
	checker.Register("database", health.DatabaseCheck(db))
	checker.Register("cache", health.RedisCheck(rdb))

	app := fiber.New(fiber.Config{
		AppName:   "PayFox",
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Handlers{
		Payments:      controllers.NewPaymentController(payments, cfg.App.RequestTimeout),
		Subscriptions: controllers.NewSubscriptionController(subscriptions, cfg.App.RequestTimeout),
		Webhooks:      controllers.NewWebhookController(processor, cfg.App.RequestTimeout),
		Admin:         controllers.NewAdminController(checker, counters, cfg.App.RequestTimeout),
	}, router.Options{
		APIKeys:            cfg.Auth.APIKeys,
		RateLimit:          cfg.App.RateLimit,
		WebhookRejectLimit: cfg.App.WebhookRejectLimit,
		LimiterStorage:     storage,
	})

	sweeper.Start()

	shutdown := func() {
		sweeper.Stop()
		if err := store.Close(); err != nil {
			log.Warnf("[Main] Closing cache storage: %v", err)
		}
		if err := rdb.Close(); err != nil {
			log.Warnf("[Main] Closing redis client: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return app, shutdown, nil
}
