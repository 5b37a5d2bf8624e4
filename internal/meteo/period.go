package meteo

import (
	"fmt"
	"time"
)

// Period is a half-open time interval [Start, End). All timestamps are UTC.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod normalizes both bounds to UTC.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: start.UTC(), End: end.UTC()}
}

// IsZero reports whether the period is the zero value.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Valid reports whether the period is non-empty.
func (p Period) Valid() bool {
	return p.Start.Before(p.End)
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Overlaps reports whether the two periods share any instant.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

// Contains reports whether other lies entirely within p.
func (p Period) Contains(other Period) bool {
	return !p.Start.After(other.Start) && !p.End.Before(other.End)
}

// ContainsTime reports whether t lies within [Start, End).
func (p Period) ContainsTime(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Intersect returns the overlapping part of the two periods.
// The second return value is false when they do not overlap.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

// Subtract removes other from p and returns the remaining sub-periods,
// at most two: the part before other and the part after it.
func (p Period) Subtract(other Period) []Period {
	if !p.Overlaps(other) {
		return []Period{p}
	}
	var out []Period
	if p.Start.Before(other.Start) {
		out = append(out, Period{Start: p.Start, End: other.Start})
	}
	if other.End.Before(p.End) {
		out = append(out, Period{Start: other.End, End: p.End})
	}
	return out
}

// Union returns the smallest period covering both p and other.
func (p Period) Union(other Period) Period {
	start := p.Start
	if other.Start.Before(start) {
		start = other.Start
	}
	end := p.End
	if other.End.After(end) {
		end = other.End
	}
	return Period{Start: start, End: end}
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}
