package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	boot := zap.Must(zap.NewProduction())

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info("orders-api starting", zap.String("order_store", cfg.OrderStore))
	var wg sync.WaitGroup

	repo, err := openOrderRepository(cfg)
	if err != nil {
		log.Fatal("failed to open order repository", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("order migrations completed")

	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer products.Close()

	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		log.Fatal("failed to run catalog migrations", zap.Error(err))
	}

	calc := pricing.NewCalculator(cfg.Pricing)
	svc := service.NewOrderService(repo, calc, log.Named("service"), service.WithProductLookup(products))

	// Outbox publisher
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	var poller *publisher.OutboxPoller
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(repo, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), log.Named("outbox"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollerCtx)
		}()
	} else {
		log.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	router := h.NewRouter(
		h.NewOrdersHandler(svc, cfg.RequestTimeout, log.Named("http")),
		h.NewProductHandler(products, cfg.RequestTimeout, log.Named("http")),
		h.NewConfigHandler(cfg.PayPalClientID),
		h.RouterConfig{RequestTimeout: cfg.RequestTimeout, MaxRequestBodySize: cfg.MaxRequestBodySize},
		log.Named("http"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "orders-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("orders-api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orders-api...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	pollerCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("outbox poller stopped cleanly")
	case <-ctx.Done():
		log.Warn("outbox poller didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			log.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
	log.Info("orders-api stopped")
}

func openOrderRepository(cfg *config.Config) (repository.OrderRepository, error) {
	if cfg.OrderStore == config.StorePostgres {
		return repository.NewRepository(&cfg.Postgres)
	}
	return repository.NewMemoryRepository(), nil
}
