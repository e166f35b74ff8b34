package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/worker"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/messaging/redis"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// workerEnv holds deployment overrides for the worker binary. They take
// precedence over the shared config file.
type workerEnv struct {
	MetricsPort  int           `envconfig:"METRICS_PORT" default:"9091"`
	BatchSize    int           `envconfig:"BATCH_SIZE"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL"`
	MaxRetries   int           `envconfig:"MAX_RETRIES"`
	RetryDelay   time.Duration `envconfig:"RETRY_DELAY"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var env workerEnv
	if err := envconfig.Process("clinic_worker", &env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process environment: %v\n", err)
		os.Exit(1)
	}
	if env.BatchSize > 0 {
		cfg.Outbox.BatchSize = env.BatchSize
	}
	if env.PollInterval > 0 {
		cfg.Outbox.PollInterval = env.PollInterval
	}
	if env.MaxRetries > 0 {
		cfg.Outbox.MaxRetries = env.MaxRetries
	}
	if env.RetryDelay > 0 {
		cfg.Outbox.RetryDelay = env.RetryDelay
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.New("clinic_worker")

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	mailer := email.NewService(cfg.SMTP)

	outboxProcessor := worker.NewOutboxProcessor(
		outboxRepo, mailer, broker, m, cfg.Outbox, cfg.Server.PublicResetURL, log,
	)
	auditRetention := worker.NewAuditRetention(auditRepo, cfg.Audit, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", env.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Info().Int("port", env.MetricsPort).Msg("serving worker metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		outboxProcessor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		auditRetention.Run(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}

	wg.Wait()
	log.Info().Msg("workers stopped")
}
