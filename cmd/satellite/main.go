package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-core/internal/broadcast"
	"github.com/joao-fontenele/storefront-core/internal/cleanup"
	"github.com/joao-fontenele/storefront-core/internal/config"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/gateway"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
	"github.com/joao-fontenele/storefront-core/internal/messaging"
	"github.com/joao-fontenele/storefront-core/internal/reconcile"
	"github.com/joao-fontenele/storefront-core/internal/redisx"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
	"github.com/joao-fontenele/storefront-core/internal/telemetry"
	"github.com/joao-fontenele/storefront-core/internal/worker"
)

const (
	serviceName    = "satellite"
	serviceVersion = "0.1.0"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadSatellite()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	store, err := satellite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open satellite store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{
		Timeout:   cfg.PullTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var locker reconcile.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		locker = redisx.NewLocker(rdb)
	}

	engine := reconcile.NewEngine(
		reconcile.NewHTTPUpstream(cfg.StorefrontURL, httpClient),
		store,
		locker,
		reconcile.Config{
			SyncInterval: cfg.SyncInterval,
			PullTimeout:  cfg.PullTimeout,
			PushTimeout:  cfg.PushTimeout,
		},
		logger,
	)
	cleaner := cleanup.NewScheduler(cleanup.NewService(store, logger), cfg.CleanupInterval, logger)

	// Each background duty runs on its own so one failing never stops another.
	var wg sync.WaitGroup
	wg.Go(func() { engine.Run(ctx) })
	wg.Go(func() { cleaner.Start(ctx) })

	if len(cfg.KafkaBrokers) > 0 {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID,
			[]string{domain.TopicOrderCommitted, domain.TopicOrderStatusChanged})
		defer func() { _ = consumer.Close() }()

		refresher := worker.NewStockRefreshHandler(engine, logger)
		wg.Go(func() { consume(ctx, consumer, refresher, logger) })
	} else {
		logger.Warn("KAFKA_BROKERS not set, cached stock refreshes only on the sync interval")
	}

	router := httpx.NewRouter()
	router.Use(telemetry.WithHTTPRoute)
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	gateway.NewHandler(gateway.NewServiceProxy(cfg.StorefrontURL, httpClient), store, logger).Register(router)

	var broadcasts *broadcast.Handler
	if cfg.TelegramToken != "" {
		sender := broadcast.NewTelegramSender(cfg.TelegramURL, cfg.TelegramToken, httpClient)
		broadcasts = broadcast.NewHandler(ctx, store,
			broadcast.NewBroadcaster(sender, cfg.BroadcastInterval, logger),
			broadcast.PolicyPrices(cfg.Policy), logger)
		router.Post("/broadcast", broadcasts.HandleSend)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, broadcasts are disabled")
	}

	server := httpx.NewServer(cfg.HTTPAddr, httpx.Instrument(router, serviceName))

	go func() {
		logger.Info("starting satellite", "addr", cfg.HTTPAddr, "storefront", cfg.StorefrontURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	cancel()
	wg.Wait()
	if broadcasts != nil {
		broadcasts.Wait()
	}
}

// consume keeps the order event consumer running. A failed message is logged
// and consumption resumes after a short pause.
func consume(ctx context.Context, consumer *messaging.Consumer, h *worker.StockRefreshHandler, logger *slog.Logger) {
	logger.Info("starting stock refresh consumer")
	for {
		err := consumer.Consume(ctx, h.Handle)
		if ctx.Err() != nil {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
