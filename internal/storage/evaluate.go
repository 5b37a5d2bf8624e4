package storage

import (
	"sort"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Status classifies one sub-range of a requested extent.
type Status string

const (
	// StatusFresh means the sub-range is fully cached and usable as-is.
	StatusFresh Status = "fresh-cached"
	// StatusStale means the sub-range is cached but past the refresh
	// interval of a predictive model.
	StatusStale Status = "stale-cached"
	// StatusMissing means no live partition covers the sub-range.
	StatusMissing Status = "missing"
)

// Segment is one classified sub-range of a coverage report. For cached
// segments, PartitionKeys names the partitions that serve it.
type Segment struct {
	Period        meteo.Period `json:"period"`
	Status        Status       `json:"status"`
	PartitionKeys []string     `json:"partitionKeys,omitempty"`
}

// CoverageReport classifies a requested extent into disjoint fresh, stale
// and missing sub-ranges that together cover the request exactly.
type CoverageReport struct {
	AsOf     time.Time `json:"asOf"`
	Segments []Segment `json:"segments"`
}

// FetchTargets coalesces the stale and missing segments into maximal
// contiguous periods, one live fetch per returned period.
func (r CoverageReport) FetchTargets() []meteo.Period {
	var out []meteo.Period
	for _, seg := range r.Segments {
		if seg.Status == StatusFresh {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End.Equal(seg.Period.Start) {
			out[n-1].End = seg.Period.End
			continue
		}
		out = append(out, seg.Period)
	}
	return out
}

// FreshKeys returns the partition keys serving the fresh segments, without
// duplicates, in segment order.
func (r CoverageReport) FreshKeys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range r.Segments {
		if seg.Status != StatusFresh {
			continue
		}
		for _, key := range seg.PartitionKeys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}

// FullyFresh reports whether the whole request is served from fresh cache.
func (r CoverageReport) FullyFresh() bool {
	for _, seg := range r.Segments {
		if seg.Status != StatusFresh {
			return false
		}
	}
	return len(r.Segments) > 0
}

// Evaluate classifies the requested extent against a snapshot of the file
// index. A partition contributes only where its factor set is a superset of
// the requested factors and its extent covers the requested box. Freshness:
// non-predictive models are always fresh; predictive models are fresh while
// asOf minus the partition's write time stays within the refresh interval.
// Where two partitions overlap, the later write wins; on equal write times
// the complete one wins. Pure query, no side effects.
func Evaluate(req meteo.Request, partitions []Partition, settings Settings, asOf time.Time) CoverageReport {
	report := CoverageReport{AsOf: asOf}
	if !req.Period.Valid() {
		return report
	}

	var candidates []Partition
	for _, p := range partitions {
		if p.Matches(req.Extent, req.Factors) && p.Period.Overlaps(req.Period) {
			candidates = append(candidates, p)
		}
	}

	// Elementary intervals: every candidate boundary clipped to the request
	// splits it into sub-ranges that each candidate either fully covers or
	// misses entirely.
	bounds := []time.Time{req.Period.Start, req.Period.End}
	for _, p := range candidates {
		if p.Period.Start.After(req.Period.Start) {
			bounds = append(bounds, p.Period.Start)
		}
		if p.Period.End.Before(req.Period.End) {
			bounds = append(bounds, p.Period.End)
		}
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Before(bounds[j]) })
	bounds = dedupeTimes(bounds)

	var segments []Segment
	for i := 0; i+1 < len(bounds); i++ {
		interval := meteo.Period{Start: bounds[i], End: bounds[i+1]}
		best, ok := bestCandidate(candidates, interval)
		seg := Segment{Period: interval, Status: StatusMissing}
		if ok {
			seg.Status = classify(best, settings, asOf)
			seg.PartitionKeys = []string{best.Key}
		}
		segments = append(segments, seg)
	}

	report.Segments = coalesce(segments)
	return report
}

func classify(p Partition, settings Settings, asOf time.Time) Status {
	if !settings.Predictive {
		return StatusFresh
	}
	if asOf.Sub(p.WrittenAt) <= settings.RefreshInterval {
		return StatusFresh
	}
	return StatusStale
}

func bestCandidate(candidates []Partition, interval meteo.Period) (Partition, bool) {
	var best Partition
	found := false
	for _, p := range candidates {
		if !p.Period.Contains(interval) {
			continue
		}
		if !found || laterWins(p, best) {
			best = p
			found = true
		}
	}
	return best, found
}

// laterWins implements the overlap tie-break: prefer the later written
// partition, then the complete one, then a stable key order.
func laterWins(p, other Partition) bool {
	if !p.WrittenAt.Equal(other.WrittenAt) {
		return p.WrittenAt.After(other.WrittenAt)
	}
	if p.Complete != other.Complete {
		return p.Complete
	}
	return p.Key < other.Key
}

func coalesce(segments []Segment) []Segment {
	var out []Segment
	for _, seg := range segments {
		if n := len(out); n > 0 && out[n-1].Status == seg.Status && out[n-1].Period.End.Equal(seg.Period.Start) {
			out[n-1].Period.End = seg.Period.End
			out[n-1].PartitionKeys = appendUnique(out[n-1].PartitionKeys, seg.PartitionKeys...)
			continue
		}
		out = append(out, seg)
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		exists := false
		for _, have := range dst {
			if have == v {
				exists = true
				break
			}
		}
		if !exists {
			dst = append(dst, v)
		}
	}
	return dst
}

func dedupeTimes(times []time.Time) []time.Time {
	out := times[:0]
	for i, t := range times {
		if i == 0 || !t.Equal(out[len(out)-1]) {
			out = append(out, t)
		}
	}
	return out
}
