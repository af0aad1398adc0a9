package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.MongoURI)
	assert.Equal(t, "estacao", cfg.MongoDatabase)
	assert.Equal(t, "readings", cfg.MongoCollection)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Empty(t, cfg.DeviceAPIKey)
	assert.Empty(t, cfg.AdminToken)
	assert.Equal(t, "esp32-001", cfg.DefaultDeviceID)
	assert.Equal(t, "https://api.open-meteo.com", cfg.ForecastBaseURL)
	assert.Equal(t, "https://alerts.inmet.gov.br/cap_12/rss/alert-as.rss", cfg.AlertFeedURL)
	assert.Equal(t, 8*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 5*time.Minute, cfg.UpstreamCacheTTL)
	assert.Equal(t, 256, cfg.UpstreamCacheSize)
	assert.Equal(t, 4, cfg.AlertFanoutLimit)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "weather-readings", cfg.KafkaTopic)

	assert.Equal(t, "Catanduva", cfg.Station.City)
	assert.Equal(t, "SP", cfg.Station.State)
	assert.Equal(t, -21.1383, cfg.Station.Latitude)
	assert.Equal(t, -48.9738, cfg.Station.Longitude)
	assert.Equal(t, "America/Sao_Paulo", cfg.Station.Location.String())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("DEVICE_API_KEY", "device-secret")
	t.Setenv("ADMIN_TOKEN", "admin-secret")
	t.Setenv("STATION_TIMEZONE", "America/Manaus")
	t.Setenv("STATION_CITY", "Manaus")
	t.Setenv("STATION_STATE", "am")
	t.Setenv("STATION_LATITUDE", "-3.1")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("ALERT_FANOUT_LIMIT", "8")
	t.Setenv("UPSTREAM_CACHE_SIZE", "32")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "device-secret", cfg.DeviceAPIKey)
	assert.Equal(t, "admin-secret", cfg.AdminToken)
	assert.Equal(t, "Manaus", cfg.Station.City)
	assert.Equal(t, "AM", cfg.Station.State)
	assert.Equal(t, -3.1, cfg.Station.Latitude)
	assert.Equal(t, "America/Manaus", cfg.Station.Location.String())
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 8, cfg.AlertFanoutLimit)
	assert.Equal(t, 32, cfg.UpstreamCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_StationProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Estação Campinas
latitude: -22.9
longitude: -47.06
city: Campinas
state: SP
`), 0o600))
	t.Setenv("STATION_PROFILE", path)
	t.Setenv("STATION_LONGITUDE", "-47.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Estação Campinas", cfg.Station.Name)
	assert.Equal(t, "Campinas", cfg.Station.City)
	assert.Equal(t, -22.9, cfg.Station.Latitude)
	assert.Equal(t, -47.1, cfg.Station.Longitude, "environment overrides the profile")
	assert.Equal(t, "America/Sao_Paulo", cfg.Station.Timezone)
}

func TestLoad_MissingStationProfile(t *testing.T) {
	t.Setenv("STATION_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION_PROFILE")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidStoreTimeout(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_TIMEOUT")
}

func TestLoad_InvalidUpstreamTimeout(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_TIMEOUT")
}

func TestLoad_InvalidFanout(t *testing.T) {
	t.Setenv("ALERT_FANOUT_LIMIT", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_FANOUT_LIMIT")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("STATION_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION_TIMEZONE")
}

func TestLoad_InvalidLatitude(t *testing.T) {
	t.Setenv("STATION_LATITUDE", "-91")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION_LATITUDE")
}

func TestLoad_InvalidState(t *testing.T) {
	t.Setenv("STATION_STATE", "SPX")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATION_STATE")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_EmptyDefaultDevice(t *testing.T) {
	t.Setenv("DEFAULT_DEVICE_ID", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultDeviceID)
}
