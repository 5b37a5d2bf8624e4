package meteo

import "fmt"

// Extent is a geographic bounding box in WGS84 degrees.
type Extent struct {
	MinLat float64 `json:"minLat" yaml:"min_lat"`
	MaxLat float64 `json:"maxLat" yaml:"max_lat"`
	MinLon float64 `json:"minLon" yaml:"min_lon"`
	MaxLon float64 `json:"maxLon" yaml:"max_lon"`
}

// PointExtent returns a degenerate extent covering a single coordinate.
func PointExtent(lat, lon float64) Extent {
	return Extent{MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon}
}

// Valid reports whether the box is well-formed and within coordinate bounds.
func (e Extent) Valid() bool {
	return e.MinLat <= e.MaxLat && e.MinLon <= e.MaxLon &&
		e.MinLat >= -90 && e.MaxLat <= 90 &&
		e.MinLon >= -180 && e.MaxLon <= 180
}

// IsZero reports whether the extent is the zero value.
func (e Extent) IsZero() bool {
	return e == Extent{}
}

// Covers reports whether other lies entirely within e.
func (e Extent) Covers(other Extent) bool {
	return e.MinLat <= other.MinLat && e.MaxLat >= other.MaxLat &&
		e.MinLon <= other.MinLon && e.MaxLon >= other.MaxLon
}

// Overlaps reports whether the two boxes share any area (or edge).
func (e Extent) Overlaps(other Extent) bool {
	return e.MinLat <= other.MaxLat && other.MinLat <= e.MaxLat &&
		e.MinLon <= other.MaxLon && other.MinLon <= e.MaxLon
}

func (e Extent) String() string {
	return fmt.Sprintf("[%.4f..%.4f, %.4f..%.4f]", e.MinLat, e.MaxLat, e.MinLon, e.MaxLon)
}
