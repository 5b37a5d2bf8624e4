package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMeteoResponse(hours int, nullTail int) string {
	times := make([]string, hours)
	temps := make([]interface{}, hours)
	winds := make([]interface{}, hours)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < hours; i++ {
		times[i] = base.Add(time.Duration(i) * time.Hour).Format(openMeteoTimeLayout)
		if i >= hours-nullTail {
			temps[i], winds[i] = nil, nil
			continue
		}
		temps[i] = float64(i)
		winds[i] = float64(i) / 2
	}
	body, _ := json.Marshal(map[string]interface{}{
		"hourly": map[string]interface{}{
			"time":           times,
			"temperature_2m": temps,
			"wind_speed_10m": winds,
		},
	})
	return string(body)
}

func newOpenMeteo(t *testing.T, handler http.HandlerFunc) *OpenMeteoModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenMeteo(OpenMeteoConfig{
		Code:            "open-meteo",
		Name:            "Open-Meteo forecast",
		RefreshInterval: 6 * time.Hour,
		BaseURL:         srv.URL,
		Client:          srv.Client(),
	})
}

func TestOpenMeteoFetchLive(t *testing.T) {
	var gotQuery map[string]string
	m := newOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, openMeteoResponse(24, 0))
	})

	ds, complete, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"temperature", "wind_speed"})
	require.NoError(t, err)
	assert.True(t, complete)
	require.Equal(t, 24, ds.Len())
	assert.Equal(t, "celsius", ds.Variables["temperature"].Unit)
	assert.Equal(t, float64(5), ds.Variables["temperature"].Values[5])
	assert.Equal(t, float64(5)/2, ds.Variables["wind_speed"].Values[5])

	assert.Equal(t, "temperature_2m,wind_speed_10m", gotQuery["hourly"])
	assert.Equal(t, "2026-01-01", gotQuery["start_date"])
	assert.Equal(t, "2026-01-01", gotQuery["end_date"])
	assert.Equal(t, "UTC", gotQuery["timezone"])
	assert.Equal(t, "ms", gotQuery["wind_speed_unit"])
}

func TestOpenMeteoClipsToPeriod(t *testing.T) {
	// The API returns whole days; a 48h response for a 24h request.
	m := newOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, openMeteoResponse(48, 0))
	})

	ds, complete, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"temperature"})
	require.NoError(t, err)
	assert.True(t, complete)
	require.Equal(t, 24, ds.Len())
	assert.True(t, ds.Times[23].Equal(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)))
}

func TestOpenMeteoNullTailIsIncomplete(t *testing.T) {
	m := newOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, openMeteoResponse(24, 4))
	})

	ds, complete, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"temperature", "wind_speed"})
	require.NoError(t, err)
	assert.False(t, complete, "a truncated forecast horizon must not claim full coverage")
	assert.Equal(t, 20, ds.Len())
	require.NoError(t, ds.Validate())
}

func TestOpenMeteoRateLimited(t *testing.T) {
	m := newOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, _, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"temperature"})
	assert.ErrorIs(t, err, errRateLimited)
}

func TestOpenMeteoServerError(t *testing.T) {
	m := newOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"temperature"})
	assert.ErrorIs(t, err, errServerError)
}

func TestOpenMeteoRejectsUnknownFactor(t *testing.T) {
	m := newOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for an unknown factor")
	})

	_, _, err := m.FetchLive(context.Background(), testPeriod(t), testExtent(), []string{"humidity"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "humidity")
}
