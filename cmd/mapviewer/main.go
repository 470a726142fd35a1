package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/county-factor-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/county-factor-map/internal/adapter/kafka"
	"github.com/couchcryptid/county-factor-map/internal/adapter/mapbox"
	"github.com/couchcryptid/county-factor-map/internal/adapter/resource"
	"github.com/couchcryptid/county-factor-map/internal/config"
	"github.com/couchcryptid/county-factor-map/internal/observability"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := resource.New(resource.Config{
		HTTPTimeout: cfg.FetchTimeout,
		S3Region:    cfg.S3Region,
		S3Endpoint:  cfg.S3Endpoint,
		S3PathStyle: cfg.S3PathStyle,
	})

	opts := []viewer.Option{viewer.WithAttempts(cfg.LoadAttempts)}

	// Place search is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		opts = append(opts, viewer.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var publisher *kafkaadapter.Publisher
	if cfg.PublishEvents() {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		opts = append(opts, viewer.WithPublisher(publisher))
		logger.Info("interaction events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	v := viewer.New(fetcher, viewer.Sources{Dataset: cfg.DatasetPath, Geometry: cfg.GeometryPath}, logger, metrics, opts...)

	page := httpadapter.PageConfig{TileURL: cfg.TileURL, SearchEnabled: cfg.MapboxEnabled}
	srv := httpadapter.NewServer(cfg.HTTPAddr, v, page, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. The page is served while data loads; the API
	// answers 503 until the load chain completes.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go func() {
		if err := v.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("county data load failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
