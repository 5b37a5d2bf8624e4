package storage

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Settings is the immutable cache configuration for one model. Each model
// owns exactly one Settings value; handlers never share storage locations.
type Settings struct {
	// ModelCode identifies the owning model.
	ModelCode string `yaml:"model_code" validate:"required"`

	// Location is the durable storage root for this model's partitions.
	Location string `yaml:"location" validate:"required"`

	// ChunkDuration is the partitioning granularity along the time axis.
	ChunkDuration time.Duration `yaml:"chunk_duration" validate:"required,gt=0"`

	// Retention is how long partitions are kept before the sweep removes
	// them. Zero disables retention-based removal.
	Retention time.Duration `yaml:"retention" validate:"gte=0"`

	// RefreshInterval is the maximum age before a cached partition of a
	// predictive model is considered stale. Ignored for non-predictive
	// models.
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`

	// Predictive marks the owning model as a forecast model whose cached
	// data ages out of freshness.
	Predictive bool `yaml:"predictive"`

	// Strict makes reads fail outright when any requested sub-range cannot
	// be satisfied, instead of returning best-effort merged data.
	Strict bool `yaml:"strict"`
}

// Validate checks the settings invariants.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid storage settings for %q: %w", s.ModelCode, err)
	}
	if s.Predictive && s.RefreshInterval <= 0 {
		return fmt.Errorf("invalid storage settings for %q: predictive models need a refresh interval", s.ModelCode)
	}
	return nil
}
