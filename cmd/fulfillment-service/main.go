package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopmesh/orderflow/internal/config"
	"github.com/shopmesh/orderflow/internal/fulfillment"
	"github.com/shopmesh/orderflow/internal/fulfillment/sqlite"
	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("fulfillment-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFulfillment()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.SetupTracer(ctx, "fulfillment-service")
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

	repo, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open orders database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

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

	for _, queue := range []string{cfg.Broker.RequestQueue, cfg.Broker.CompletionQueue} {
		if err := b.DeclareQueue(queue); err != nil {
			slog.Error("failed to declare queue", "queue", queue, "error", err)
			os.Exit(1)
		}
	}

	consumer := fulfillment.NewConsumer(repo, b, cfg.Broker.CompletionQueue)
	if err := b.Consume(ctx, cfg.Broker.RequestQueue, consumer.Handle); err != nil {
		slog.Error("failed to subscribe to request queue", "error", err)
		os.Exit(1)
	}

	slog.Info("fulfillment service running",
		"request_queue", cfg.Broker.RequestQueue,
		"completion_queue", cfg.Broker.CompletionQueue,
	)

	<-ctx.Done()

	closed := make(chan struct{})
	go func() {
		if err := b.Close(); err != nil {
			slog.Error("broker shutdown error", "error", err)
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(cfg.ShutdownTimeout):
		slog.Error("broker shutdown timed out", "timeout", cfg.ShutdownTimeout)
	}

	slog.Info("fulfillment service stopped")
}
