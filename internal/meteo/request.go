package meteo

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Request describes a caller's ask for weather data: a time period, a
// geographic extent and a set of weather factors. AsOf drives staleness
// checks for predictive models; the zero value means "now".
type Request struct {
	Period  Period    `json:"period" validate:"required"`
	Extent  Extent    `json:"extent" validate:"required"`
	Factors []string  `json:"factors" validate:"required,min=1,dive,required"`
	AsOf    time.Time `json:"asOf,omitempty"`
}

// Validate checks the structural constraints that every request must meet.
func (r Request) Validate() error {
	if !r.Period.Valid() {
		return fmt.Errorf("request period %s is empty or inverted", r.Period)
	}
	if !r.Extent.Valid() || r.Extent.IsZero() {
		return fmt.Errorf("request extent %s is invalid", r.Extent)
	}
	if len(r.Factors) == 0 {
		return fmt.Errorf("request has no factors")
	}
	for _, f := range r.Factors {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("request has an empty factor name")
		}
	}
	return nil
}

// EffectiveAsOf resolves the AsOf timestamp, defaulting to the current time.
func (r Request) EffectiveAsOf(now time.Time) time.Time {
	if r.AsOf.IsZero() {
		return now.UTC()
	}
	return r.AsOf.UTC()
}

// NormalizeFactors returns the factor names sorted and de-duplicated.
func NormalizeFactors(factors []string) []string {
	seen := make(map[string]struct{}, len(factors))
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FactorsSuperset reports whether have contains every factor in want.
func FactorsSuperset(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, f := range have {
		set[f] = struct{}{}
	}
	for _, f := range want {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}
