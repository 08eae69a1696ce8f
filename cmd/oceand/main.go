package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/ocean-data-service/internal/adapter/http"
	"github.com/couchcryptid/ocean-data-service/internal/adapter/httpclient"
	kafkaadapter "github.com/couchcryptid/ocean-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/ocean-data-service/internal/adapter/mapbox"
	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/config"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/pipeline"
	"github.com/couchcryptid/ocean-data-service/internal/source"
	"github.com/couchcryptid/ocean-data-service/internal/store"
	"github.com/couchcryptid/ocean-data-service/internal/tutorial"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	for _, w := range cfg.Warnings() {
		logger.Warn("insecure configuration", "detail", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data sources, in rank order.
	clientCfg := httpclient.DefaultConfig("data-source")
	clientCfg.Timeout = cfg.FetchTimeout
	clientCfg.MaxRetries = cfg.FetchRetries
	client := httpclient.New(clientCfg, logger, metrics)
	loader := source.NewLoader(source.NewProviders(cfg, client), cfg.FetchTimeout, logger, metrics)
	logger.Info("data sources configured", "providers", loader.Providers())

	// Station labelling (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.ReverseGeocoder
	if cfg.MapboxEnabled {
		mb := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(mb, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox labelling enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox labelling disabled")
	}

	// Tutorial flags live in Redis when configured, otherwise in memory.
	var kv store.Store = store.NewMemoryStore()
	var backends []httpadapter.ReadinessChecker
	if cfg.RedisAddr != "" {
		rs, err := store.NewRedisStore(ctx, cfg.RedisAddr, "ocean:")
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		kv = rs
		backends = append(backends, rs)
		logger.Info("redis store enabled", "addr", cfg.RedisAddr)
	}

	var sinks []pipeline.Sink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	scheduler := animation.New(clockwork.NewRealClock(), logger)
	scheduler.SetSpeed(cfg.AnimationSpeed)
	scheduler.SetLoopMode(cfg.AnimationLoop)

	p := pipeline.New(loader, pipeline.Options{
		LoadTimeout: cfg.LoadTimeout,
		Geocoder:    geocoder,
		Sinks:       sinks,
		Frames:      scheduler,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Data:      p,
		Animation: scheduler,
		Tutorial:  tutorial.NewTracker(kv),
		Settings: httpadapter.ClientSettings{
			StreamURL:       cfg.StreamURL,
			MapLabelling:    cfg.MapboxEnabled,
			TargetDepth:     cfg.TargetDepth,
			SeriesMaxPoints: cfg.SeriesMaxPoints,
			RefreshSchedule: cfg.RefreshSchedule,
		},
		Metrics:  metrics,
		Backends: backends,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start the animation clock.
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("animation scheduler error", "error", err)
		}
	}()

	// Start loading and periodic refresh.
	go func() {
		if err := p.Run(ctx, cfg.RefreshSchedule); err != nil {
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
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
