package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/weather-station-api/internal/adapter/http"
	"github.com/couchcryptid/weather-station-api/internal/adapter/inmet"
	kafkaadapter "github.com/couchcryptid/weather-station-api/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-api/internal/adapter/memory"
	mongoadapter "github.com/couchcryptid/weather-station-api/internal/adapter/mongo"
	"github.com/couchcryptid/weather-station-api/internal/adapter/openmeteo"
	"github.com/couchcryptid/weather-station-api/internal/adapter/upstream"
	"github.com/couchcryptid/weather-station-api/internal/aggregator"
	"github.com/couchcryptid/weather-station-api/internal/alerts"
	"github.com/couchcryptid/weather-station-api/internal/config"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/ingest"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// store is a reading store that can also report readiness.
type store interface {
	domain.ReadingStore
	CheckReadiness(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reading store: MongoDB when MONGODB_URI is set, otherwise in memory.
	var readings store
	var mongoStore *mongoadapter.Store
	if cfg.MongoURI != "" {
		mongoStore, err = mongoadapter.Connect(ctx, mongoadapter.Options{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			Timeout:    cfg.StoreTimeout,
		}, metrics, logger)
		if err != nil {
			logger.Error("failed to connect reading store", "error", err)
			os.Exit(1)
		}
		readings = mongoStore
	} else {
		logger.Warn("MONGODB_URI not set, readings are kept in memory only")
		readings = memory.NewStore()
	}

	// Upstream response cache: Redis when REDIS_ADDR is set, otherwise a local LRU.
	var cache upstream.Cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisCache := upstream.NewRedisCache(redisClient, logger)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, cache misses until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		cache = redisCache
		logger.Info("upstream cache on redis", "addr", cfg.RedisAddr, "ttl", cfg.UpstreamCacheTTL)
	} else {
		cache = upstream.NewMemoryCache(cfg.UpstreamCacheSize, clock)
		logger.Info("upstream cache in memory", "size", cfg.UpstreamCacheSize, "ttl", cfg.UpstreamCacheTTL)
	}

	forecastFetcher := upstream.NewCachedFetcher(
		upstream.NewClient("open-meteo", cfg.UpstreamTimeout, metrics, logger), cache, cfg.UpstreamCacheTTL, metrics)
	alertFetcher := upstream.NewCachedFetcher(
		upstream.NewClient("inmet", cfg.UpstreamTimeout, metrics, logger), cache, cfg.UpstreamCacheTTL, metrics)

	forecaster := openmeteo.NewClient(forecastFetcher, cfg.ForecastBaseURL, openmeteo.Site{
		Latitude:  cfg.Station.Latitude,
		Longitude: cfg.Station.Longitude,
		Timezone:  cfg.Station.Timezone,
	})
	feed := inmet.NewClient(alertFetcher, cfg.AlertFeedURL)

	var publisher ingest.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = writer
		logger.Info("reading events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("reading events disabled")
	}

	if cfg.DeviceAPIKey == "" {
		logger.Warn("DEVICE_API_KEY not set, device ingestion is rejected")
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin edits are rejected")
	}

	svc := ingest.New(readings, publisher, clock, ingest.Options{
		DeviceAPIKey:    cfg.DeviceAPIKey,
		AdminToken:      cfg.AdminToken,
		DefaultDeviceID: cfg.DefaultDeviceID,
	}, metrics, logger)
	agg := aggregator.New(readings, forecaster, clock, cfg.Station.Location, logger)
	filter := alerts.New(feed, feed, clock, cfg.Station.Location, alerts.Options{
		FanoutLimit:  cfg.AlertFanoutLimit,
		DefaultState: cfg.Station.State,
	}, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Writer:      svc,
		Reader:      agg,
		Alerts:      filter,
		Ready:       readings,
		Location:    cfg.Station.Location,
		StationName: cfg.Station.Name,
	}, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("station api started",
		"station", cfg.Station.Name,
		"timezone", cfg.Station.Timezone,
		"state", cfg.Station.State,
	)

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
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if mongoStore != nil {
		if err := mongoStore.Close(shutdownCtx); err != nil {
			logger.Error("mongo disconnect error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
