package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/internal/maintenance"
	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/instance"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/metrics"
	"github.com/angelmondragon/branchledger/pkg/migrate"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/redis"
)

const serviceName = "maintenance-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.Redis.Enabled() {
		logg.Error(context.Background(), "redis is required for the maintenance lock", errors.New("redis not configured"))
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg.Maintenance, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register maintenance jobs", err)
		os.Exit(1)
	}

	lock, err := maintenance.NewRedisLock(redisClient, redisClient.LockKey("maintenance:"+lockScope(cfg.App.Env)), instance.GetID(), cfg.Maintenance.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance lock", err)
		os.Exit(1)
	}

	runner, err := maintenance.NewRunner(maintenance.RunnerParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewWorkerMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
		"interval":    cfg.Maintenance.Interval.String(),
	})
	logg.Info(ctx, "starting maintenance worker")

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "maintenance worker shutting down gracefully")
}

func buildRegistry(cfg config.MaintenanceConfig, logg *logger.Logger, dbClient *db.Client) (*maintenance.Registry, error) {
	followUpRepo := followups.NewRepository(dbClient.DB())

	outboxJob, err := maintenance.NewOutboxRetentionJob(logg, dbClient, outbox.NewRepository(dbClient.DB()), cfg.OutboxRetentionDays)
	if err != nil {
		return nil, err
	}
	followUpJob, err := maintenance.NewFollowUpRetentionJob(logg, followUpRepo, cfg.FollowUpRetentionDays)
	if err != nil {
		return nil, err
	}
	staleJob, err := maintenance.NewStaleFollowUpJob(logg, followUpRepo, cfg.StaleFollowUpAfter)
	if err != nil {
		return nil, err
	}
	return maintenance.NewRegistry(outboxJob, followUpJob, staleJob)
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
