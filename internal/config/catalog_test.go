package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
sources:
  - id: knmi
    name: KNMI
    models:
      - code: harmonie
        name: Harmonie Arome
        kind: synthetic
        step: 1h
        predictive: true
        refresh_interval: 6h
        storage:
          chunk_duration: 24h
          retention: 168h
          strict: true
        auto_refresh:
          interval: 30m
          behind: 2h
          ahead: 48h
          factors: [temperature, wind_speed]
          city: De Bilt
          country: Netherlands
  - id: noaa
    name: NOAA
    models:
      - code: gfs
        name: GFS archive
        storage:
          chunk_duration: 24h
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)
	require.Len(t, cat.Sources, 2)

	harmonie := cat.Sources[0].Models[0]
	assert.Equal(t, "harmonie", harmonie.Code)
	assert.Equal(t, "synthetic", harmonie.Kind)
	assert.Equal(t, time.Hour, harmonie.Step.Std())
	assert.True(t, harmonie.Predictive)
	assert.Equal(t, 6*time.Hour, harmonie.RefreshInterval.Std())
	assert.Equal(t, 24*time.Hour, harmonie.Storage.ChunkDuration.Std())
	assert.Equal(t, 7*24*time.Hour, harmonie.Storage.Retention.Std())
	assert.True(t, harmonie.Storage.Strict)

	require.NotNil(t, harmonie.AutoRefresh)
	assert.Equal(t, 30*time.Minute, harmonie.AutoRefresh.Interval.Std())
	assert.Equal(t, 48*time.Hour, harmonie.AutoRefresh.Ahead.Std())
	assert.Equal(t, []string{"temperature", "wind_speed"}, harmonie.AutoRefresh.Factors)
	assert.Equal(t, "De Bilt", harmonie.AutoRefresh.City)

	gfs := cat.Sources[1].Models[0]
	assert.Empty(t, gfs.Kind)
	assert.Nil(t, gfs.AutoRefresh)
	assert.False(t, gfs.Storage.Strict)
}

func TestLoadCatalogRejectsBadDuration(t *testing.T) {
	_, err := LoadCatalog(writeCatalog(t, `
sources:
  - id: knmi
    models:
      - code: harmonie
        storage:
          chunk_duration: soon
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestCatalogValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no sources",
			body: `sources: []`,
			want: "no sources",
		},
		{
			name: "duplicate source id",
			body: `
sources:
  - id: knmi
    models: [{code: a, storage: {chunk_duration: 1h}}]
  - id: knmi
    models: [{code: b, storage: {chunk_duration: 1h}}]
`,
			want: "duplicate source id",
		},
		{
			name: "duplicate model code",
			body: `
sources:
  - id: knmi
    models:
      - {code: a, storage: {chunk_duration: 1h}}
      - {code: a, storage: {chunk_duration: 1h}}
`,
			want: "duplicate model code",
		},
		{
			name: "unknown kind",
			body: `
sources:
  - id: knmi
    models: [{code: a, kind: grib, storage: {chunk_duration: 1h}}]
`,
			want: "unknown kind",
		},
		{
			name: "missing chunk duration",
			body: `
sources:
  - id: knmi
    models: [{code: a}]
`,
			want: "chunk_duration",
		},
		{
			name: "predictive without refresh interval",
			body: `
sources:
  - id: knmi
    models: [{code: a, predictive: true, storage: {chunk_duration: 1h}}]
`,
			want: "refresh_interval",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
