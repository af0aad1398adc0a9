package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // station zones must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings, populated from environment variables
// and an optional YAML station profile.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Reading store. An empty MongoURI selects the in-memory store.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	StoreTimeout    time.Duration

	// Shared secrets. An empty secret rejects every request it guards.
	DeviceAPIKey    string
	AdminToken      string
	DefaultDeviceID string

	Station Station

	// External sources.
	ForecastBaseURL   string
	AlertFeedURL      string
	UpstreamTimeout   time.Duration
	UpstreamCacheTTL  time.Duration
	UpstreamCacheSize int
	AlertFanoutLimit  int
	RedisAddr         string

	// Reading event publishing.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Station describes the site the readings come from.
type Station struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
	City      string  `yaml:"city"`
	State     string  `yaml:"state"`

	Location *time.Location `yaml:"-"`
}

var defaultStation = Station{
	Name:      "Estação Catanduva",
	Latitude:  -21.1383,
	Longitude: -48.9738,
	Timezone:  "America/Sao_Paulo",
	City:      "Catanduva",
	State:     "SP",
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	storeTimeout, err := parsePositiveDuration("STORE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("UPSTREAM_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	fanout, err := parsePositiveInt("ALERT_FANOUT_LIMIT", 4)
	if err != nil {
		return nil, err
	}

	station, err := loadStation()
	if err != nil {
		return nil, err
	}

	var kafkaBrokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		kafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   sharedcfg.EnvOrDefault("MONGODB_DATABASE", "estacao"),
		MongoCollection: sharedcfg.EnvOrDefault("MONGODB_COLLECTION", "readings"),
		StoreTimeout:    storeTimeout,

		DeviceAPIKey:    os.Getenv("DEVICE_API_KEY"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		DefaultDeviceID: envOrDefaultAllowEmpty("DEFAULT_DEVICE_ID", "esp32-001"),

		Station: station,

		ForecastBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("FORECAST_BASE_URL", "https://api.open-meteo.com"), "/"),
		AlertFeedURL:      sharedcfg.EnvOrDefault("ALERT_FEED_URL", "https://alerts.inmet.gov.br/cap_12/rss/alert-as.rss"),
		UpstreamTimeout:   upstreamTimeout,
		UpstreamCacheTTL:  cacheTTL,
		UpstreamCacheSize: parseCacheSize(),
		AlertFanoutLimit:  fanout,
		RedisAddr:         os.Getenv("REDIS_ADDR"),

		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-readings"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

// loadStation starts from the built-in station, overlays the YAML profile
// named by STATION_PROFILE, then the STATION_* variables.
func loadStation() (Station, error) {
	st := defaultStation

	if path := os.Getenv("STATION_PROFILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Station{}, fmt.Errorf("read STATION_PROFILE: %w", err)
		}
		if err := yaml.Unmarshal(data, &st); err != nil {
			return Station{}, fmt.Errorf("parse STATION_PROFILE: %w", err)
		}
	}

	st.Name = sharedcfg.EnvOrDefault("STATION_NAME", st.Name)
	st.Timezone = sharedcfg.EnvOrDefault("STATION_TIMEZONE", st.Timezone)
	st.City = sharedcfg.EnvOrDefault("STATION_CITY", st.City)
	st.State = strings.ToUpper(sharedcfg.EnvOrDefault("STATION_STATE", st.State))

	var err error
	if st.Latitude, err = parseFloat("STATION_LATITUDE", st.Latitude, -90, 90); err != nil {
		return Station{}, err
	}
	if st.Longitude, err = parseFloat("STATION_LONGITUDE", st.Longitude, -180, 180); err != nil {
		return Station{}, err
	}

	loc, err := time.LoadLocation(st.Timezone)
	if err != nil {
		return Station{}, fmt.Errorf("invalid STATION_TIMEZONE %q: %w", st.Timezone, err)
	}
	st.Location = loc

	if len(st.State) != 2 {
		return Station{}, errors.New("invalid STATION_STATE: must be a two-letter UF code")
	}
	return st, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def, lo, hi float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseCacheSize() int {
	if s := os.Getenv("UPSTREAM_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}

// envOrDefaultAllowEmpty distinguishes an unset variable from one set to the
// empty string, which disables the default.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
