package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruit-intake/internal/analytics"
	"recruit-intake/internal/common/config"
	"recruit-intake/internal/common/database"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/common/observability"
	"recruit-intake/internal/intake"
	"recruit-intake/internal/ratelimit"
	"recruit-intake/internal/relay"
	"recruit-intake/internal/search"
	"recruit-intake/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting intake server...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	tracing, err := observability.NewTracing(ctx, cfg.App.Name, cfg.App.Version, cfg.Observability.OTLPEndpoint)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	checks := map[string]server.Checker{"postgres": pg}

	// --- Rate limiter ---
	window := config.GetDuration(cfg.RateLimit.Window)
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendRedis:
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return err
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		checks["redis"] = rdb
		limiter = ratelimit.NewRedisLimiter(rdb.GetClient(), cfg.RateLimit.KeyPrefix, cfg.RateLimit.MaxRequests, window, log)
	default:
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxRequests, window, cfg.RateLimit.MaxKeys)
		sweeper, err := ratelimit.StartSweeper(mem, cfg.RateLimit.SweepSchedule, log)
		if err != nil {
			return err
		}
		defer sweeper.Stop()
		limiter = mem
	}

	// --- Optional Elasticsearch mirror ---
	runnerOpts := []intake.RunnerOption{intake.WithObservability(obs)}
	if cfg.Database.Elasticsearch.Enabled() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Database.Elasticsearch.Index))

		if err := es.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, search.Mapping); err != nil {
			return err
		}

		checks["elasticsearch"] = es
		runnerOpts = append(runnerOpts, intake.WithIndexer(search.NewIndexer(es.Client, cfg.Database.Elasticsearch.Index)))
	}

	store := intake.NewPostgresStore(pg.GetDB())
	runner := intake.NewRunner(store, cfg.Intake, log, runnerOpts...)

	srv := server.New(cfg.Server, server.Dependencies{
		Intake:    intake.NewHandler(runner, limiter, cfg.Intake, log),
		Relay:     relay.NewHandler(relay.New(cfg.Relay.WebhookURL, config.GetDuration(cfg.Relay.Timeout), log), log),
		Analytics: analytics.NewHandler(analytics.NewService(pg.GetDB()), log),
		Checks:    checks,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, draining requests...")
	case err := <-errCh:
		if err != nil {
			zapLog.Error("HTTP server stopped", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("tracer shutdown failed", zap.Error(err))
	}

	zapLog.Info("Intake server stopped")
	return nil
}
