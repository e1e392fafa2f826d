package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/instance"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/metrics"
	"github.com/angelmondragon/branchledger/pkg/migrate"
	"github.com/angelmondragon/branchledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/branchledger/pkg/pubsub"
	"github.com/angelmondragon/branchledger/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: followups.ConsumerName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: followups.ConsumerName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.Redis.Enabled() {
		requireResource(ctx, logg, "redis", errors.New("redis is required for consumer idempotency"))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.FollowUpSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "follow-up subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.FollowUp.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	consumer, err := followups.NewConsumer(followups.ConsumerParams{
		Repository:   followups.NewRepository(dbClient.DB()),
		Subscription: subscription,
		Idempotency:  manager,
		Metrics:      metrics.NewWorkerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	requireResource(ctx, logg, "follow-up consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  followups.ConsumerName,
		"instance":     instance.GetID(),
		"subscription": cfg.PubSub.FollowUpSubscription,
	})
	logg.Info(runCtx, "follow-up worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "follow-up worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "follow-up worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
