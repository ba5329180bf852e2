package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka report publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaResultsTopic string

	// Mapbox reverse geocoding.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// IP geolocation fallback.
	IPFallbackEnabled bool
	IPGeoURL          string
	IPGeoTimeout      time.Duration
	IPGeoRatePerMin   int

	// Position acquisition.
	PositionTimeout         time.Duration
	PositionHighAccuracy    bool
	LocationCacheTTL        time.Duration
	PositionRefreshInterval time.Duration
	PositionWatch           bool
	DeviceLatitude          *float64
	DeviceLongitude         *float64

	// Ranking.
	LocalTimezone     *time.Location
	MaxRadiusKm       float64
	PreferredRadiusKm float64
	TrafficAware      bool

	// CandidatesFile seeds the candidate pool served by GET /v1/matches.
	CandidatesFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "service-match-reports"),
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),
		IPGeoURL:          sharedcfg.EnvOrDefault("IP_GEO_URL", "http://ip-api.com/json/"),
		CandidatesFile:    os.Getenv("CANDIDATES_FILE"),
	}

	p := parser{}
	cfg.KafkaEnabled = p.boolean("KAFKA_ENABLED", false)
	cfg.MapboxEnabled = p.boolean("MAPBOX_ENABLED", cfg.MapboxToken != "")
	cfg.MapboxTimeout = p.duration("MAPBOX_TIMEOUT", 5*time.Second)
	cfg.MapboxCacheSize = p.positiveInt("MAPBOX_CACHE_SIZE", 1000)
	cfg.IPFallbackEnabled = p.boolean("IP_FALLBACK_ENABLED", true)
	cfg.IPGeoTimeout = p.duration("IP_GEO_TIMEOUT", 5*time.Second)
	cfg.IPGeoRatePerMin = p.positiveInt("IP_GEO_RATE_PER_MINUTE", 45)
	cfg.PositionTimeout = p.duration("POSITION_TIMEOUT", 10*time.Second)
	cfg.PositionHighAccuracy = p.boolean("POSITION_HIGH_ACCURACY", true)
	cfg.LocationCacheTTL = p.duration("LOCATION_CACHE_TTL", 10*time.Minute)
	cfg.PositionRefreshInterval = p.duration("POSITION_REFRESH_INTERVAL", 5*time.Minute)
	cfg.PositionWatch = p.boolean("POSITION_WATCH", false)
	cfg.DeviceLatitude = p.optionalFloat("DEVICE_LAT")
	cfg.DeviceLongitude = p.optionalFloat("DEVICE_LON")
	cfg.LocalTimezone = p.timezone("LOCAL_TIMEZONE")
	cfg.MaxRadiusKm = p.positiveFloat("MAX_RADIUS_KM", 25)
	cfg.PreferredRadiusKm = p.positiveFloat("PREFERRED_RADIUS_KM", 5)
	cfg.TrafficAware = p.boolean("TRAFFIC_AWARE", true)
	if p.err != nil {
		return nil, p.err
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaResultsTopic == "" {
			return nil, errors.New("KAFKA_RESULTS_TOPIC is required")
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if (cfg.DeviceLatitude == nil) != (cfg.DeviceLongitude == nil) {
		return nil, errors.New("DEVICE_LAT and DEVICE_LON must be set together")
	}
	if cfg.PreferredRadiusKm > cfg.MaxRadiusKm {
		return nil, fmt.Errorf("PREFERRED_RADIUS_KM %v exceeds MAX_RADIUS_KM %v", cfg.PreferredRadiusKm, cfg.MaxRadiusKm)
	}

	return cfg, nil
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) fail(key, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: must be %s", key, want)
	}
}

func (p *parser) boolean(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, "a boolean")
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, "a positive duration")
		return def
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key, "a positive integer")
		return def
	}
	return n
}

func (p *parser) positiveFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		p.fail(key, "a positive number")
		return def
	}
	return f
}

func (p *parser) optionalFloat(key string) *float64 {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, "a number")
		return nil
	}
	return &f
}

// timezone returns nil when unset, meaning no reliable local time.
func (p *parser) timezone(key string) *time.Location {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		p.fail(key, "an IANA time zone name")
		return nil
	}
	return loc
}
