package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// SyntheticModel generates deterministic weather-like data for any requested
// extent. It stands in for a real provider in demos and integration runs:
// values are pure functions of timestamp and extent, so repeated fetches for
// the same range are bit-identical.
type SyntheticModel struct {
	meta       Metadata
	step       time.Duration
	predictive bool
	refresh    time.Duration
}

// SyntheticConfig configures a synthetic model.
type SyntheticConfig struct {
	Code            string        `yaml:"code"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Step            time.Duration `yaml:"step"`
	Predictive      bool          `yaml:"predictive"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// NewSynthetic creates a synthetic model. Step defaults to one hour.
func NewSynthetic(cfg SyntheticConfig) *SyntheticModel {
	step := cfg.Step
	if step <= 0 {
		step = time.Hour
	}
	return &SyntheticModel{
		meta: Metadata{
			Code:        cfg.Code,
			Name:        cfg.Name,
			Description: cfg.Description,
			Factors: []Factor{
				{Name: "temperature", Unit: "celsius"},
				{Name: "wind_speed", Unit: "m/s"},
				{Name: "pressure", Unit: "hPa"},
				{Name: "precipitation", Unit: "mm"},
			},
		},
		step:       step,
		predictive: cfg.Predictive,
		refresh:    cfg.RefreshInterval,
	}
}

func (m *SyntheticModel) Code() string                   { return m.meta.Code }
func (m *SyntheticModel) Metadata() Metadata             { return m.meta }
func (m *SyntheticModel) Predictive() bool               { return m.predictive }
func (m *SyntheticModel) RefreshInterval() time.Duration { return m.refresh }

// FetchLive generates samples on the model's time step within the period.
func (m *SyntheticModel) FetchLive(ctx context.Context, period meteo.Period, extent meteo.Extent, factors []string) (*dataset.Dataset, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	known := make(map[string]Factor, len(m.meta.Factors))
	for _, f := range m.meta.Factors {
		known[f.Name] = f
	}
	for _, name := range factors {
		if _, ok := known[name]; !ok {
			return nil, false, fmt.Errorf("model %s does not supply factor %q", m.meta.Code, name)
		}
	}

	out := dataset.New(extent)
	start := period.Start.Truncate(m.step)
	if start.Before(period.Start) {
		start = start.Add(m.step)
	}
	for t := start; t.Before(period.End); t = t.Add(m.step) {
		out.Times = append(out.Times, t)
	}

	centerLat := (extent.MinLat + extent.MaxLat) / 2
	for _, name := range factors {
		f := known[name]
		values := make([]float64, len(out.Times))
		for i, t := range out.Times {
			values[i] = syntheticValue(name, t, centerLat)
		}
		out.Variables[name] = dataset.Series{Unit: f.Unit, Values: values}
	}
	return out, true, nil
}

// syntheticValue derives a stable, plausible value for a factor at a time
// and latitude. Daily cycle for temperature, slower cycles for the rest.
func syntheticValue(factor string, t time.Time, lat float64) float64 {
	dayFrac := float64(t.Hour())/24 + float64(t.Minute())/1440
	switch factor {
	case "temperature":
		return 12 + 8*math.Sin(2*math.Pi*(dayFrac-0.25)) - 0.3*math.Abs(lat-45)
	case "wind_speed":
		return 4 + 3*math.Sin(2*math.Pi*float64(t.YearDay())/7)
	case "pressure":
		return 1013 + 10*math.Sin(2*math.Pi*float64(t.YearDay())/30)
	case "precipitation":
		v := 2 * math.Sin(2*math.Pi*float64(t.YearDay())/3)
		if v < 0 {
			return 0
		}
		return v
	default:
		return 0
	}
}
