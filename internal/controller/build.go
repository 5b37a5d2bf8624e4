package controller

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/wpl-go/weather-provider-storage/internal/config"
	"github.com/wpl-go/weather-provider-storage/internal/model"
	"github.com/wpl-go/weather-provider-storage/internal/storage"
)

// BuildOptions carries the cross-cutting collaborators handed to every
// storage handler built from a catalog.
type BuildOptions struct {
	StorageRoot string
	FetchConfig storage.FetchConfig
	Metrics     *storage.Metrics
	Log         zerolog.Logger
}

// Build constructs the registry and per-model storage handlers a catalog
// declares. Each model's storage location is <root>/<sourceID>/<modelCode>.
func Build(cat *config.Catalog, opts BuildOptions) (*Controller, error) {
	var sources []*model.Source
	handlers := make(map[string]*storage.Handler)

	for _, srcSpec := range cat.Sources {
		var models []model.Model
		for _, spec := range srcSpec.Models {
			m := buildModel(spec)
			models = append(models, m)

			settings := storage.Settings{
				ModelCode:       spec.Code,
				Location:        filepath.Join(opts.StorageRoot, srcSpec.ID, spec.Code),
				ChunkDuration:   spec.Storage.ChunkDuration.Std(),
				Retention:       spec.Storage.Retention.Std(),
				RefreshInterval: m.RefreshInterval(),
				Predictive:      m.Predictive(),
				Strict:          spec.Storage.Strict,
			}

			h, err := storage.NewHandler(settings, m,
				storage.WithLogger(opts.Log.With().Str("model", spec.Code).Logger()),
				storage.WithMetrics(opts.Metrics),
				storage.WithFetchConfig(opts.FetchConfig),
			)
			if err != nil {
				return nil, err
			}
			handlers[handlerKey(srcSpec.ID, spec.Code)] = h
		}
		sources = append(sources, model.NewSource(srcSpec.ID, srcSpec.Name, models...))
	}

	return New(model.NewRegistry(sources...), handlers, opts.Log), nil
}

func buildModel(spec config.ModelSpec) model.Model {
	// The catalog validator rejects unknown kinds before we get here.
	switch spec.Kind {
	case config.KindOpenMeteo:
		return model.NewOpenMeteo(model.OpenMeteoConfig{
			Code:            spec.Code,
			Name:            spec.Name,
			Description:     spec.Description,
			RefreshInterval: spec.RefreshInterval.Std(),
		})
	default:
		return model.NewSynthetic(model.SyntheticConfig{
			Code:            spec.Code,
			Name:            spec.Name,
			Description:     spec.Description,
			Step:            spec.Step.Std(),
			Predictive:      spec.Predictive,
			RefreshInterval: spec.RefreshInterval.Std(),
		})
	}
}
