// Package model defines the capability interface for weather-data models and
// the registry through which a controller resolves them. Provider-specific
// network protocols live behind FetchLive and are owned by each concrete
// model, not by this package.
package model

import (
	"context"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Factor describes one weather variable a model can supply.
type Factor struct {
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}

// Metadata identifies a model towards users and logs.
type Metadata struct {
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Factors     []Factor `json:"factors" yaml:"factors"`
}

// FactorNames returns the names of all factors the model supplies.
func (m Metadata) FactorNames() []string {
	names := make([]string, 0, len(m.Factors))
	for _, f := range m.Factors {
		names = append(names, f.Name)
	}
	return names
}

// Model is the capability a weather-data model must offer. Concrete variants
// are selected by configuration and registered explicitly; there is no
// inheritance hierarchy.
type Model interface {
	// Code returns the unique identifier of the model within its source.
	Code() string

	// Metadata describes the model for diagnostics and routing.
	Metadata() Metadata

	// FetchLive retrieves data from the upstream provider for the given
	// extent. The returned flag reports whether the fetch covered the full
	// requested extent without gaps.
	FetchLive(ctx context.Context, period meteo.Period, extent meteo.Extent, factors []string) (*dataset.Dataset, bool, error)

	// Predictive reports whether the model's values are forecasts and
	// therefore age out of freshness over time.
	Predictive() bool

	// RefreshInterval is the maximum age before cached data from a
	// predictive model is considered stale. Ignored for non-predictive
	// models.
	RefreshInterval() time.Duration
}
