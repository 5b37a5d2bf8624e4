// Package locations resolves named places to geographic extents for
// catalog-driven jobs. Only simple geocoding lives here; coordinate
// transformation between reference systems is out of scope.
package locations

import (
	"fmt"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Resolver turns city/country pairs into point extents via geocoding.
// Results are cached so scheduled jobs do not re-geocode the same place on
// every run.
type Resolver struct {
	enabled bool
	cache   *extentCache
}

// NewResolver configures the geocoding backend. With an empty API key the
// resolver is disabled and Resolve returns an error for every lookup.
func NewResolver(apiKey string) *Resolver {
	r := &Resolver{cache: newExtentCache(256, 30*24*time.Hour)}
	if apiKey == "" {
		return r
	}
	geocoder.ApiKey = apiKey
	r.enabled = true
	return r
}

// Resolve geocodes the named place into a degenerate point extent.
func (r *Resolver) Resolve(city, country string) (meteo.Extent, error) {
	if !r.enabled {
		return meteo.Extent{}, fmt.Errorf("geocoding is not configured; set GEOCODER_API_KEY or declare an explicit extent")
	}
	if extent, ok := r.cache.get(city, country); ok {
		return extent, nil
	}
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return meteo.Extent{}, fmt.Errorf("geocode %s, %s: %w", city, country, err)
	}
	extent := meteo.PointExtent(loc.Latitude, loc.Longitude)
	if !extent.Valid() {
		return meteo.Extent{}, fmt.Errorf("geocode %s, %s returned out-of-range coordinates", city, country)
	}
	r.cache.put(city, country, extent)
	return extent, nil
}
