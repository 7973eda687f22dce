package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/weather-lookup-service/internal/adapter/fswatch"
	"github.com/couchcryptid/weather-lookup-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/weather-lookup-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-lookup-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-lookup-service/internal/config"
	"github.com/couchcryptid/weather-lookup-service/internal/observability"
	"github.com/couchcryptid/weather-lookup-service/internal/pipeline"
	"github.com/couchcryptid/weather-lookup-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	entities, err := config.LoadEntities(cfg.LookupConfig)
	if err != nil {
		logger.Error("failed to load entity config", "path", cfg.LookupConfig, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, cacheCloser, err := service.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("cache ready", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)

	registry, err := service.NewRegistry(cfg, entities, c, logger, metrics)
	if err != nil {
		logger.Error("failed to build loaders", "error", err)
		os.Exit(1)
	}

	watcher, err := fswatch.New(registry, cfg.BatchFlushInterval, cfg.WatchEnabled, logger)
	if err != nil {
		logger.Error("failed to watch lookups", "error", err)
		os.Exit(1)
	}

	// Sinks are optional; with none configured the pipeline only warms the cache.
	var sinks pipeline.FanOut
	var store *sqlite.Store
	if cfg.StorePath != "" {
		store, err = sqlite.Open(cfg.StorePath)
		if err != nil {
			logger.Error("failed to open record store", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pipeline.NamedLoader{Name: "sqlite", Loader: store})
		logger.Info("record store enabled", "path", cfg.StorePath)
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaSinkTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.NamedLoader{Name: "kafka", Loader: writer})
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(watcher, pipeline.NewTransformer(registry), sinks, logger, metrics, cfg.BatchSize)

	ready := service.Readiness{p}
	var records httpadapter.RecordStore
	if store != nil {
		ready = append(ready, store)
		records = store
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, registry, records, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := watcher.Close(); err != nil {
		logger.Error("watcher close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("record store close error", "error", err)
		}
	}
	if err := cacheCloser.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}
