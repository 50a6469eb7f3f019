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

	"github.com/shopmesh/orderflow/internal/config"
	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/cache"
	"github.com/shopmesh/orderflow/internal/pkg/telemetry"
	"github.com/shopmesh/orderflow/internal/shop/catalog"
	catalogsqlite "github.com/shopmesh/orderflow/internal/shop/catalog/sqlite"
	"github.com/shopmesh/orderflow/internal/shop/httpx"
	"github.com/shopmesh/orderflow/internal/shop/orders"
)

func main() {
	telemetry.InitLogger("shop-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadShop()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.SetupTracer(ctx, "shop-service")
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	repo, err := catalogsqlite.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open catalog database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	catalogSvc := catalog.NewService(
		repo,
		cache.NewRedisCache(cfg.RedisAddr, "shop"),
		cfg.CatalogCacheTTL,
	)

	b, err := broker.Dial(ctx, broker.DialConfig{
		URI:             cfg.Broker.URI,
		Prefetch:        cfg.Broker.Prefetch,
		RetryInterval:   cfg.Broker.RetryInterval,
		MaxRetryElapsed: cfg.Broker.MaxRetryElapsed,
	})
	if err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	for _, queue := range []string{cfg.Broker.RequestQueue, cfg.Broker.CompletionQueue} {
		if err := b.DeclareQueue(queue); err != nil {
			slog.Error("failed to declare queue", "queue", queue, "error", err)
			os.Exit(1)
		}
	}

	tracker := orders.NewTracker(cfg.WaitTimeout)
	go tracker.RunJanitor(ctx)

	publisher := orders.NewPublisher(b, cfg.Broker.RequestQueue, tracker)

	completions := orders.NewCompletionConsumer(tracker)
	if err := b.Consume(ctx, cfg.Broker.CompletionQueue, completions.Handle); err != nil {
		slog.Error("failed to subscribe to completion queue", "error", err)
		os.Exit(1)
	}

	handler := httpx.NewHandler(catalogSvc, publisher, tracker)
	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: httpx.NewRouter(handler),
	}

	go func() {
		slog.Info("shop service running", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	slog.Info("shop service stopped")
}
