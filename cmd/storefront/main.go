package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/storefront-core/internal/api"
	"github.com/joao-fontenele/storefront-core/internal/config"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
	"github.com/joao-fontenele/storefront-core/internal/messaging"
	"github.com/joao-fontenele/storefront-core/internal/redisx"
	"github.com/joao-fontenele/storefront-core/internal/telemetry"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadStorefront()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	deps := api.Deps{Metrics: metricsHandler}

	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers)
		defer func() { _ = producer.Close() }()
		deps.Publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events are not published")
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		deps.Idempotency = redisx.NewIdempotency(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, checkout idempotency keys are ignored")
	}

	handlers := api.NewStorefront(db, cfg.Policy, deps, logger)
	server := httpx.NewServer(cfg.HTTPAddr, httpx.Instrument(api.NewRouter(handlers), serviceName))

	go func() {
		logger.Info("starting storefront", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
