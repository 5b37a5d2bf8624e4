package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the process-level configuration, read from environment
// variables with sensible defaults.
type AppConfig struct {
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
	// LogJSON switches from console to JSON log output.
	LogJSON bool

	// StorageRoot is the directory under which every model gets its own
	// storage location.
	StorageRoot string

	// CatalogPath points at the YAML catalog declaring sources and models.
	CatalogPath string

	// SweepInterval controls how often the retention sweep runs.
	SweepInterval time.Duration

	// FetchTimeout bounds each individual live-fetch attempt.
	FetchTimeout time.Duration

	// GeocoderAPIKey enables named-location resolution when set.
	GeocoderAPIKey string

	// Port serves the operational HTTP surface.
	Port string
	// MetricsPort serves Prometheus metrics.
	MetricsPort int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogJSON = getenvBool("LOG_JSON", false)

	cfg.StorageRoot = getenvDefault("STORAGE_ROOT", "./data")
	cfg.CatalogPath = getenvDefault("CATALOG_PATH", "catalog.yaml")

	sweepStr := getenvDefault("SWEEP_INTERVAL", "1h")
	sweep, err := time.ParseDuration(sweepStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepInterval = sweep

	fetchTimeoutStr := getenvDefault("FETCH_TIMEOUT", "30s")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout = fetchTimeout

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.MetricsPort = getenvInt("METRICS_PORT", 9090)

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
