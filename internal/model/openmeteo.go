package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

const openMeteoTimeLayout = "2006-01-02T15:04"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// openMeteoVariable maps one factor onto the Open-Meteo hourly API.
type openMeteoVariable struct {
	apiName string
	unit    string
}

// Factor names follow the harmonized vocabulary; the API names are
// Open-Meteo's. Wind speed is requested in m/s explicitly.
var openMeteoVariables = map[string]openMeteoVariable{
	"temperature":   {apiName: "temperature_2m", unit: "celsius"},
	"wind_speed":    {apiName: "wind_speed_10m", unit: "m/s"},
	"pressure":      {apiName: "surface_pressure", unit: "hPa"},
	"precipitation": {apiName: "precipitation", unit: "mm"},
}

// OpenMeteoModel fetches hourly forecast data from the Open-Meteo API. It is
// predictive: forecasts age out of freshness and are re-fetched on the
// configured refresh interval. Open-Meteo serves point forecasts, so the
// model samples the center of the requested extent.
type OpenMeteoModel struct {
	meta    Metadata
	baseURL string
	client  *http.Client
	refresh time.Duration
}

// OpenMeteoConfig configures an Open-Meteo backed model.
type OpenMeteoConfig struct {
	Code            string
	Name            string
	Description     string
	RefreshInterval time.Duration

	// BaseURL overrides the production endpoint, for tests.
	BaseURL string
	Client  *http.Client
}

// NewOpenMeteo creates a model backed by the Open-Meteo forecast API.
func NewOpenMeteo(cfg OpenMeteoConfig) *OpenMeteoModel {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}

	factors := make([]Factor, 0, len(openMeteoVariables))
	for _, name := range []string{"temperature", "wind_speed", "pressure", "precipitation"} {
		factors = append(factors, Factor{Name: name, Unit: openMeteoVariables[name].unit})
	}

	return &OpenMeteoModel{
		meta: Metadata{
			Code:        cfg.Code,
			Name:        cfg.Name,
			Description: cfg.Description,
			Factors:     factors,
		},
		baseURL: baseURL,
		client:  client,
		refresh: cfg.RefreshInterval,
	}
}

func (m *OpenMeteoModel) Code() string                   { return m.meta.Code }
func (m *OpenMeteoModel) Metadata() Metadata             { return m.meta }
func (m *OpenMeteoModel) Predictive() bool               { return true }
func (m *OpenMeteoModel) RefreshInterval() time.Duration { return m.refresh }

// FetchLive requests the hourly variables covering period and clips the
// response to it. The completeness flag reports whether every hourly sample
// of the period came back.
func (m *OpenMeteoModel) FetchLive(ctx context.Context, period meteo.Period, extent meteo.Extent, factors []string) (*dataset.Dataset, bool, error) {
	selected := make([]openMeteoVariable, 0, len(factors))
	for _, name := range factors {
		v, ok := openMeteoVariables[name]
		if !ok {
			return nil, false, fmt.Errorf("model %s does not supply factor %q", m.meta.Code, name)
		}
		selected = append(selected, v)
	}

	req, err := m.buildRequest(ctx, period, extent, selected)
	if err != nil {
		return nil, false, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	// Rate limiting and server errors are worth retrying upstream; other
	// non-2xx statuses are not.
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, errRateLimited
	case resp.StatusCode >= 500:
		return nil, false, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode open-meteo response: %w", err)
	}

	return m.buildDataset(payload.Hourly, period, extent, factors)
}

func (m *OpenMeteoModel) buildRequest(ctx context.Context, period meteo.Period, extent meteo.Extent, selected []openMeteoVariable) (*http.Request, error) {
	apiNames := make([]string, 0, len(selected))
	for _, v := range selected {
		apiNames = append(apiNames, v.apiName)
	}

	// The API spans whole days; the response is clipped to the period after
	// parsing. The last requested day is the one holding the final sample.
	lastSample := period.End.Add(-time.Second)

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", (extent.MinLat+extent.MaxLat)/2))
	values.Set("longitude", fmt.Sprintf("%f", (extent.MinLon+extent.MaxLon)/2))
	values.Set("hourly", strings.Join(apiNames, ","))
	values.Set("start_date", period.Start.UTC().Format("2006-01-02"))
	values.Set("end_date", lastSample.UTC().Format("2006-01-02"))
	values.Set("timezone", "UTC")
	values.Set("wind_speed_unit", "ms")

	u := fmt.Sprintf("%s?%s", m.baseURL, values.Encode())
	return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
}

func (m *OpenMeteoModel) buildDataset(hourly map[string]json.RawMessage, period meteo.Period, extent meteo.Extent, factors []string) (*dataset.Dataset, bool, error) {
	var rawTimes []string
	if err := json.Unmarshal(hourly["time"], &rawTimes); err != nil {
		return nil, false, fmt.Errorf("decode open-meteo time axis: %w", err)
	}

	// Indexes of the samples falling inside the requested period.
	var keep []int
	times := make([]time.Time, 0, len(rawTimes))
	for i, raw := range rawTimes {
		t, err := time.Parse(openMeteoTimeLayout, raw)
		if err != nil {
			return nil, false, fmt.Errorf("decode open-meteo timestamp %q: %w", raw, err)
		}
		t = t.UTC()
		if period.ContainsTime(t) {
			keep = append(keep, i)
			times = append(times, t)
		}
	}

	series := make(map[string][]*float64, len(factors))
	usable := len(keep)
	for _, name := range factors {
		v := openMeteoVariables[name]
		raw, ok := hourly[v.apiName]
		if !ok {
			return nil, false, fmt.Errorf("open-meteo response is missing %q", v.apiName)
		}
		var all []*float64
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, false, fmt.Errorf("decode open-meteo %s: %w", v.apiName, err)
		}
		series[name] = all

		// A null sample means the forecast horizon ended early; the shared
		// time axis stops at the shortest factor.
		n := 0
		for _, i := range keep {
			if i >= len(all) || all[i] == nil {
				break
			}
			n++
		}
		if n < usable {
			usable = n
		}
	}

	out := dataset.New(extent)
	out.Times = times[:usable]
	for _, name := range factors {
		v := openMeteoVariables[name]
		values := make([]float64, 0, usable)
		for _, i := range keep[:usable] {
			values = append(values, *series[name][i])
		}
		out.Variables[name] = dataset.Series{Unit: v.unit, Values: values}
	}

	if err := out.Validate(); err != nil {
		return nil, false, err
	}

	expected := int(period.Duration() / time.Hour)
	return out, out.Len() == expected, nil
}
