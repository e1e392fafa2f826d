package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/branchledger/api/routes"
	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/internal/manifests"
	"github.com/angelmondragon/branchledger/internal/sequence"
	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/instance"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/metrics"
	"github.com/angelmondragon/branchledger/pkg/migrate"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; rate limiting and idempotency keys disabled")
	}

	reg := metrics.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	manifestRepo := manifests.NewRepository(dbClient.DB())
	generator, err := buildGenerator(cfg, logg, manifestRepo, redisClient, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build sequence generator", err)
		os.Exit(1)
	}

	manifestService, err := manifests.NewService(manifests.ServiceParams{
		Repository:            manifestRepo,
		Tx:                    dbClient,
		Outbox:                outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Sequence:              generator,
		Metrics:               ledgerMetrics,
		Logger:                logg,
		AllowOutgoingDispatch: cfg.FeatureFlags.AllowOutgoingDispatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create manifest service", err)
		os.Exit(1)
	}

	followUpService, err := followups.NewService(followups.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create follow-up service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"sequence_mode": cfg.Sequence.Mode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			manifestService,
			followUpService,
			metrics.Handler(reg),
			metrics.NewHTTPMetrics(reg),
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// buildGenerator prefers the redis counter when configured and reachable;
// otherwise numbers come straight from the manifest store.
func buildGenerator(cfg *config.Config, logg *logger.Logger, store sequence.NumberStore, redisClient *redis.Client, recorder sequence.Recorder) (sequence.Generator, error) {
	storeGen, err := sequence.NewStoreGenerator(store, logg, recorder)
	if err != nil {
		return nil, err
	}
	if !cfg.Sequence.UsesCounter() {
		return storeGen, nil
	}
	if redisClient == nil {
		logg.Warn(context.Background(), "sequence counter mode requested without redis; using store numbering")
		return storeGen, nil
	}
	counterGen, err := sequence.NewCounterGenerator(redisClient, storeGen, cfg.Sequence.CounterTTL, logg, recorder)
	if err != nil {
		return nil, err
	}
	return counterGen, nil
}
