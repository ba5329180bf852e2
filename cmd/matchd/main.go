package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/service-match/internal/adapter/device"
	httpadapter "github.com/couchcryptid/service-match/internal/adapter/http"
	"github.com/couchcryptid/service-match/internal/adapter/ipgeo"
	kafkaadapter "github.com/couchcryptid/service-match/internal/adapter/kafka"
	"github.com/couchcryptid/service-match/internal/adapter/mapbox"
	"github.com/couchcryptid/service-match/internal/config"
	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	"github.com/couchcryptid/service-match/internal/observability"
	"github.com/couchcryptid/service-match/internal/position"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	providerOpts := []position.Option{
		position.WithClock(clock),
		position.WithLogger(logger),
		position.WithMetrics(metrics),
		position.WithTimeout(cfg.PositionTimeout),
		position.WithHighAccuracy(cfg.PositionHighAccuracy),
		position.WithCacheTTL(cfg.LocationCacheTTL),
	}

	// Reverse geocoding (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		providerOpts = append(providerOpts, position.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	if cfg.IPFallbackEnabled {
		locator := ipgeo.NewClient(cfg.IPGeoURL, cfg.IPGeoTimeout, cfg.IPGeoRatePerMin, metrics, logger)
		providerOpts = append(providerOpts, position.WithNetworkLocator(locator))
		logger.Info("ip geolocation fallback enabled", "url", cfg.IPGeoURL, "rate_per_minute", cfg.IPGeoRatePerMin)
	}

	var deviceCoords *domain.Coordinates
	if cfg.DeviceLatitude != nil {
		deviceCoords = &domain.Coordinates{Latitude: *cfg.DeviceLatitude, Longitude: *cfg.DeviceLongitude}
		if err := deviceCoords.Validate(); err != nil {
			logger.Error("invalid device coordinates", "error", err)
			os.Exit(1)
		}
	}
	provider := position.New(device.NewStatic(deviceCoords, cfg.PositionRefreshInterval, clock), providerOpts...)

	sessionOpts := []discovery.Option{discovery.WithClock(clock)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sessionOpts = append(sessionOpts, discovery.WithPublisher(writer))
		logger.Info("report publishing enabled", "topic", cfg.KafkaResultsTopic)
	}

	session := discovery.New(provider, discovery.Config{
		MaxRadiusKm:       cfg.MaxRadiusKm,
		PreferredRadiusKm: cfg.PreferredRadiusKm,
		TrafficAware:      cfg.TrafficAware,
		LocalZone:         cfg.LocalTimezone,
		RefreshInterval:   cfg.PositionRefreshInterval,
		Watch:             cfg.PositionWatch,
	}, logger, metrics, sessionOpts...)

	serverOpts := []httpadapter.Option{httpadapter.WithLocator(provider)}
	if cfg.CandidatesFile != "" {
		pool, err := loadCandidates(cfg.CandidatesFile)
		if err != nil {
			logger.Error("failed to load candidates", "file", cfg.CandidatesFile, "error", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, httpadapter.WithCandidatePool(pool))
		logger.Info("candidate pool loaded", "file", cfg.CandidatesFile, "count", len(pool))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, session, session, logger, serverOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Keep the position fresh.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := session.Run(ctx); err != nil {
			logger.Error("session error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Error("session did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadCandidates reads and validates a JSON array of candidates.
func loadCandidates(path string) ([]domain.ProviderCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pool []domain.ProviderCandidate
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := domain.ValidateCandidates(pool); err != nil {
		return nil, err
	}
	return pool, nil
}
