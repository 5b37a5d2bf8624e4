package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./data", cfg.StorageRoot)
	assert.Equal(t, "catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 9090, cfg.MetricsPort)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("STORAGE_ROOT", "/var/lib/wps")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("METRICS_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "/var/lib/wps", cfg.StorageRoot)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 9191, cfg.MetricsPort)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "often")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWEEP_INTERVAL")
}
