// Package controller is the entry point of the library: it routes data
// requests by source and model code to the storage handler owning that
// model's cache.
package controller

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
	"github.com/wpl-go/weather-provider-storage/internal/model"
	"github.com/wpl-go/weather-provider-storage/internal/storage"
)

// Controller routes requests over an explicitly injected registry. Every
// registered model owns exactly one storage handler.
type Controller struct {
	registry *model.Registry
	handlers map[string]*storage.Handler
	log      zerolog.Logger
}

// New creates a controller over the given registry and per-model handlers.
// The handlers map is keyed by "<sourceID>/<modelCode>".
func New(registry *model.Registry, handlers map[string]*storage.Handler, log zerolog.Logger) *Controller {
	return &Controller{registry: registry, handlers: handlers, log: log}
}

// Registry exposes the source catalog for diagnostics.
func (c *Controller) Registry() *model.Registry { return c.registry }

// Handler resolves the storage handler owning the given model's cache.
func (c *Controller) Handler(sourceID, modelCode string) (*storage.Handler, error) {
	if _, err := c.registry.Model(sourceID, modelCode); err != nil {
		return nil, err
	}
	h, ok := c.handlers[handlerKey(sourceID, modelCode)]
	if !ok {
		return nil, fmt.Errorf("model %s/%s has no storage handler", sourceID, modelCode)
	}
	return h, nil
}

// Handlers returns every storage handler, keyed by "<sourceID>/<modelCode>".
func (c *Controller) Handlers() map[string]*storage.Handler {
	out := make(map[string]*storage.Handler, len(c.handlers))
	for k, v := range c.handlers {
		out[k] = v
	}
	return out
}

// GetWeather answers a data request for one model, served from cache where
// possible.
func (c *Controller) GetWeather(ctx context.Context, sourceID, modelCode string, req meteo.Request) (*storage.Result, error) {
	h, err := c.Handler(sourceID, modelCode)
	if err != nil {
		return nil, err
	}
	return h.GetModelData(ctx, req)
}

// UpdateWeather forces a refresh of one model's cache over the given extent.
func (c *Controller) UpdateWeather(ctx context.Context, sourceID, modelCode string, period meteo.Period, extent meteo.Extent, factors []string) error {
	h, err := c.Handler(sourceID, modelCode)
	if err != nil {
		return err
	}
	return h.UpdateModelData(ctx, period, extent, factors)
}

// ClearWeather drops cached data of one model, optionally bounded to a
// period.
func (c *Controller) ClearWeather(ctx context.Context, sourceID, modelCode string, period *meteo.Period) error {
	h, err := c.Handler(sourceID, modelCode)
	if err != nil {
		return err
	}
	return h.ClearModelData(ctx, period)
}

func handlerKey(sourceID, modelCode string) string {
	return sourceID + "/" + modelCode
}
