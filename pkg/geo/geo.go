// Package geo provides the rectangular bounds primitives used by the
// building loader: quantized cache signatures, viewport buffering,
// overlap testing and the Overpass bbox wire format.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// SignaturePrecision is the number of decimal places each edge is rounded
// to when deriving a cache signature. Four decimals is roughly 11 m at the
// equator; two viewports that round identically alias to one cache entry.
const SignaturePrecision = 4

// Bounds is a geographic rectangle in degrees.
// Callers must supply well-formed rectangles: North >= South, East >= West.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Region is a fixed rectangle describing the coverage area of the upstream
// data service. Requests outside it are silently skipped by the loader.
type Region struct {
	MinLon float64
	MaxLon float64
	MinLat float64
	MaxLat float64
}

// ViennaRegion is the default deployment coverage area.
var ViennaRegion = Region{
	MinLon: 16.0,
	MaxLon: 17.0,
	MinLat: 48.0,
	MaxLat: 48.5,
}

// Bounds returns the region as a Bounds rectangle.
func (r Region) Bounds() Bounds {
	return Bounds{North: r.MaxLat, South: r.MinLat, East: r.MaxLon, West: r.MinLon}
}

// Contains reports whether the point lies inside the region (edges inclusive).
func (r Region) Contains(lon, lat float64) bool {
	return lon >= r.MinLon && lon <= r.MaxLon && lat >= r.MinLat && lat <= r.MaxLat
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Signature derives the quantized cache key for the bounds. Each edge is
// rounded to SignaturePrecision decimals and concatenated in N,S,E,W order,
// so any two bounds that round identically collapse to the same key.
func (b Bounds) Signature() string {
	p := SignaturePrecision
	return fmt.Sprintf("%.*f,%.*f,%.*f,%.*f",
		p, roundTo(b.North, p),
		p, roundTo(b.South, p),
		p, roundTo(b.East, p),
		p, roundTo(b.West, p))
}

// Buffer expands each edge outward by fraction of the extent along that
// axis. A zero-extent axis is returned unchanged.
func (b Bounds) Buffer(fraction float64) Bounds {
	latPad := (b.North - b.South) * fraction
	lonPad := (b.East - b.West) * fraction
	return Bounds{
		North: b.North + latPad,
		South: b.South - latPad,
		East:  b.East + lonPad,
		West:  b.West - lonPad,
	}
}

// rect converts the bounds into a planar rectangle with X = longitude and
// Y = latitude.
func (b Bounds) rect() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: b.West, Hi: b.East},
		Y: r1.Interval{Lo: b.South, Hi: b.North},
	}
}

// Overlaps reports whether the two rectangles share any point.
// Touching edges count as overlapping.
func (b Bounds) Overlaps(other Bounds) bool {
	return b.rect().Intersects(other.rect())
}

// WithinRegion reports whether the bounds overlap the given coverage region.
func (b Bounds) WithinRegion(region Region) bool {
	return b.Overlaps(region.Bounds())
}

// QueryBbox formats the bounds in the Overpass bbox order:
// south,west,north,east. The axis order is fixed by the upstream protocol.
func (b Bounds) QueryBbox() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.South, b.West, b.North, b.East)
}

// ValidateCoords validates latitude and longitude values.
// Returns an error if the coordinates are invalid.
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}

// Validate checks that the bounds form a well-formed rectangle with
// coordinates in range.
func (b Bounds) Validate() error {
	if err := ValidateCoords(b.North, b.East); err != nil {
		return err
	}
	if err := ValidateCoords(b.South, b.West); err != nil {
		return err
	}
	if b.North < b.South {
		return fmt.Errorf("invalid bounds: north %f is south of south %f", b.North, b.South)
	}
	if b.East < b.West {
		return fmt.Errorf("invalid bounds: east %f is west of west %f", b.East, b.West)
	}
	return nil
}
