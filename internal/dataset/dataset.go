// Package dataset holds the harmonized array-data format exchanged between
// models and storage: values laid out along an explicit UTC time axis, with
// named variables carrying explicit units and a geographic extent label.
package dataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Series is one variable's values along the dataset's time axis.
type Series struct {
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
}

// Dataset is dimension-labelled weather data: one shared time coordinate,
// a geographic extent, and per-variable value series. Every series must have
// exactly one value per time step.
type Dataset struct {
	Times     []time.Time       `json:"times"`
	Extent    meteo.Extent      `json:"extent"`
	Variables map[string]Series `json:"variables"`
}

// New returns an empty dataset covering the given extent.
func New(extent meteo.Extent) *Dataset {
	return &Dataset{
		Extent:    extent,
		Variables: make(map[string]Series),
	}
}

// Len returns the number of time steps.
func (d *Dataset) Len() int {
	return len(d.Times)
}

// FactorNames returns the variable names in sorted order.
func (d *Dataset) FactorNames() []string {
	names := make([]string, 0, len(d.Variables))
	for name := range d.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Period returns the half-open time span covered by the dataset. The end
// bound is the last timestamp plus the sampling step (or one step of zero
// length for single-sample datasets, in which case one nanosecond is used).
func (d *Dataset) Period() meteo.Period {
	if len(d.Times) == 0 {
		return meteo.Period{}
	}
	first := d.Times[0]
	last := d.Times[len(d.Times)-1]
	step := time.Nanosecond
	if len(d.Times) > 1 {
		step = d.Times[1].Sub(d.Times[0])
	}
	return meteo.NewPeriod(first, last.Add(step))
}

// Validate checks the harmonized-format invariants: a sorted, strictly
// increasing UTC time axis, a valid extent, and one value per time step and
// variable with a non-empty unit. Invoked before every storage write.
func (d *Dataset) Validate() error {
	if !d.Extent.Valid() {
		return &MismatchError{Reason: fmt.Sprintf("invalid extent %s", d.Extent)}
	}
	for i := 1; i < len(d.Times); i++ {
		if !d.Times[i].After(d.Times[i-1]) {
			return &MismatchError{Reason: fmt.Sprintf("time axis not strictly increasing at index %d", i)}
		}
	}
	for name, s := range d.Variables {
		if s.Unit == "" {
			return &MismatchError{Reason: fmt.Sprintf("variable %q has no unit", name)}
		}
		if len(s.Values) != len(d.Times) {
			return &MismatchError{
				Reason: fmt.Sprintf("variable %q has %d values for %d time steps", name, len(s.Values), len(d.Times)),
			}
		}
	}
	return nil
}

// SliceTime returns a copy of the dataset restricted to timestamps within p.
func (d *Dataset) SliceTime(p meteo.Period) *Dataset {
	out := New(d.Extent)
	for i, t := range d.Times {
		if !p.ContainsTime(t) {
			continue
		}
		out.Times = append(out.Times, t)
		for name, s := range d.Variables {
			dst := out.Variables[name]
			dst.Unit = s.Unit
			dst.Values = append(dst.Values, s.Values[i])
			out.Variables[name] = dst
		}
	}
	return out
}

// Select returns a copy of the dataset holding only the named variables.
// Unknown names are ignored.
func (d *Dataset) Select(factors []string) *Dataset {
	out := New(d.Extent)
	out.Times = append(out.Times, d.Times...)
	for _, name := range factors {
		s, ok := d.Variables[name]
		if !ok {
			continue
		}
		values := make([]float64, len(s.Values))
		copy(values, s.Values)
		out.Variables[name] = Series{Unit: s.Unit, Values: values}
	}
	return out
}

// MergeTime concatenates datasets along the time axis into one contiguous
// result. All inputs must agree exactly on variable names and units; the
// merged extent is the union of the input extents. When two inputs carry the
// same timestamp, the later input wins.
func MergeTime(parts ...*Dataset) (*Dataset, error) {
	var nonEmpty []*Dataset
	for _, p := range parts {
		if p != nil && p.Len() > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return New(meteo.Extent{}), nil
	}

	first := nonEmpty[0]
	for _, p := range nonEmpty[1:] {
		if err := sameSchema(first, p); err != nil {
			return nil, err
		}
	}

	extent := first.Extent
	type sample struct {
		order int
		src   *Dataset
		idx   int
	}
	byTime := make(map[time.Time]sample)
	for order, p := range nonEmpty {
		extent = unionExtent(extent, p.Extent)
		for i, t := range p.Times {
			t = t.UTC()
			if prev, ok := byTime[t]; ok && prev.order > order {
				continue
			}
			byTime[t] = sample{order: order, src: p, idx: i}
		}
	}

	times := make([]time.Time, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := New(extent)
	out.Times = times
	for name, s := range first.Variables {
		values := make([]float64, 0, len(times))
		for _, t := range times {
			src := byTime[t]
			values = append(values, src.src.Variables[name].Values[src.idx])
		}
		out.Variables[name] = Series{Unit: s.Unit, Values: values}
	}
	return out, nil
}

func sameSchema(a, b *Dataset) error {
	if len(a.Variables) != len(b.Variables) {
		return &MismatchError{
			Reason: fmt.Sprintf("variable sets differ: %v vs %v", a.FactorNames(), b.FactorNames()),
		}
	}
	for name, sa := range a.Variables {
		sb, ok := b.Variables[name]
		if !ok {
			return &MismatchError{Reason: fmt.Sprintf("variable %q missing from one side of a merge", name)}
		}
		if sa.Unit != sb.Unit {
			return &MismatchError{
				Reason: fmt.Sprintf("variable %q unit mismatch: %q vs %q", name, sa.Unit, sb.Unit),
			}
		}
	}
	return nil
}

func unionExtent(a, b meteo.Extent) meteo.Extent {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	out := a
	if b.MinLat < out.MinLat {
		out.MinLat = b.MinLat
	}
	if b.MaxLat > out.MaxLat {
		out.MaxLat = b.MaxLat
	}
	if b.MinLon < out.MinLon {
		out.MinLon = b.MinLon
	}
	if b.MaxLon > out.MaxLon {
		out.MaxLon = b.MaxLon
	}
	return out
}
