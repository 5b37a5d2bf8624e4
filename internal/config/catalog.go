package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Duration wraps time.Duration so catalog files can use "15m" style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Model kinds shipping with the library.
const (
	KindSynthetic = "synthetic"
	KindOpenMeteo = "openmeteo"
)

// Catalog declares the sources and models a deployment serves. It is loaded
// from YAML and injected into the registry at startup; nothing in the
// library reads it globally.
type Catalog struct {
	Sources []SourceSpec `yaml:"sources"`
}

// SourceSpec declares one data supplier and its models.
type SourceSpec struct {
	ID     string      `yaml:"id"`
	Name   string      `yaml:"name"`
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec declares one model, its storage settings and its optional
// background auto-refresh job.
type ModelSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Kind selects the concrete model implementation. "synthetic" and
	// "openmeteo" ship with the library; deployments register their own
	// provider-backed kinds through the registry.
	Kind string `yaml:"kind"`

	Step            Duration `yaml:"step"`
	Predictive      bool     `yaml:"predictive"`
	RefreshInterval Duration `yaml:"refresh_interval"`

	Storage StorageSpec `yaml:"storage"`

	AutoRefresh *AutoRefreshSpec `yaml:"auto_refresh,omitempty"`
}

// StorageSpec carries the per-model cache settings from the catalog.
type StorageSpec struct {
	ChunkDuration Duration `yaml:"chunk_duration"`
	Retention     Duration `yaml:"retention"`
	Strict        bool     `yaml:"strict"`
}

// AutoRefreshSpec configures the periodic forced refresh of a model's cache.
// The extent is either given directly or resolved from a named location.
type AutoRefreshSpec struct {
	Interval Duration `yaml:"interval"`
	// Behind and Ahead span the refreshed window around "now".
	Behind  Duration     `yaml:"behind"`
	Ahead   Duration     `yaml:"ahead"`
	Factors []string     `yaml:"factors"`
	Extent  meteo.Extent `yaml:"extent"`
	City    string       `yaml:"city"`
	Country string       `yaml:"country"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Validate checks catalog invariants: unique ids, known kinds, and usable
// storage settings.
func (c *Catalog) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("no sources declared")
	}
	seenSources := make(map[string]struct{})
	for _, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("source with empty id")
		}
		if _, dup := seenSources[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seenSources[src.ID] = struct{}{}

		seenModels := make(map[string]struct{})
		for _, m := range src.Models {
			if m.Code == "" {
				return fmt.Errorf("source %q has a model with empty code", src.ID)
			}
			if _, dup := seenModels[m.Code]; dup {
				return fmt.Errorf("source %q has duplicate model code %q", src.ID, m.Code)
			}
			seenModels[m.Code] = struct{}{}

			if m.Kind != "" && m.Kind != KindSynthetic && m.Kind != KindOpenMeteo {
				return fmt.Errorf("model %s/%s has unknown kind %q", src.ID, m.Code, m.Kind)
			}
			if m.Storage.ChunkDuration.Std() <= 0 {
				return fmt.Errorf("model %s/%s needs a positive chunk_duration", src.ID, m.Code)
			}
			// Open-Meteo models are forecasts and therefore always predictive.
			if (m.Predictive || m.Kind == KindOpenMeteo) && m.RefreshInterval.Std() <= 0 {
				return fmt.Errorf("predictive model %s/%s needs a refresh_interval", src.ID, m.Code)
			}
		}
	}
	return nil
}
