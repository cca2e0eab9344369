package buildings

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
	"github.com/wienmaps/buildingsmcp/pkg/monitoring"
	"github.com/wienmaps/buildingsmcp/pkg/overpass"
)

// MaxRingPoints caps ring complexity. Oversized rings are rejected, not
// simplified.
const MaxRingPoints = 100

// minRingPoints is the minimum number of coordinate pairs before closing.
const minRingPoints = 4

// Converter transforms raw upstream elements into validated, closed
// polygon features with normalized attributes. Malformed elements are
// logged and skipped; one bad element never aborts a batch.
type Converter struct {
	region geo.Region
	logger *slog.Logger
}

// NewConverter creates a Converter validating coordinates against the
// given coverage region.
func NewConverter(region geo.Region, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		region: region,
		logger: logger.With("component", "converter"),
	}
}

// Convert processes all elements and returns the accepted features in
// acceptance order.
func (c *Converter) Convert(elements []overpass.Element) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, element := range elements {
		feature, ok := c.convertElement(element)
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, feature)
	}
	return fc
}

// convertElement converts a single element, recovering from any panic so
// garbled data cannot take down the batch.
func (c *Converter) convertElement(element overpass.Element) (feature geojson.Feature, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("skipping element after conversion panic",
				"element_id", element.ID,
				"element_type", element.Type,
				"panic", r,
			)
			monitoring.RecordDroppedElement("panic")
			ok = false
		}
	}()

	if len(element.Geometry) == 0 && len(element.Members) == 0 && len(element.Tags) == 0 {
		monitoring.RecordDroppedElement("empty")
		return geojson.Feature{}, false
	}

	// Untagged elements are only kept when they are ways complex enough to
	// plausibly outline a structure.
	if !hasStructuralTag(element.Tags) {
		if element.Type != "way" || len(element.Geometry) <= 3 {
			monitoring.RecordDroppedElement("untagged")
			return geojson.Feature{}, false
		}
	}

	raw, ok := c.extractRing(element)
	if !ok {
		return geojson.Feature{}, false
	}

	ring := make([][2]float64, 0, len(raw)+1)
	for _, point := range raw {
		if !validCoordinate(point.Lon, point.Lat) {
			monitoring.RecordDroppedElement("invalid_coordinate")
			c.logger.Debug("dropping element with invalid coordinate",
				"element_id", element.ID, "lat", point.Lat, "lon", point.Lon)
			return geojson.Feature{}, false
		}
		if !c.region.Contains(point.Lon, point.Lat) {
			monitoring.RecordDroppedElement("out_of_region")
			return geojson.Feature{}, false
		}
		ring = append(ring, [2]float64{point.Lon, point.Lat})
	}

	if len(ring) < minRingPoints {
		monitoring.RecordDroppedElement("too_few_points")
		return geojson.Feature{}, false
	}

	// Close the ring when the boundary does not end where it started.
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	if len(ring) > MaxRingPoints {
		monitoring.RecordDroppedElement("too_complex")
		return geojson.Feature{}, false
	}

	monitoring.ConvertedElements.Inc()
	return geojson.NewPolygonFeature(ring, c.properties(element.Tags)), true
}

// extractRing pulls the coordinate ring out of a way or relation. For
// relations only the first member with role "outer" and type "way" is
// used; additional outer members are ignored. This is a documented
// simplification, not full multipolygon assembly.
func (c *Converter) extractRing(element overpass.Element) ([]overpass.LatLon, bool) {
	switch element.Type {
	case "way":
		if len(element.Geometry) == 0 {
			monitoring.RecordDroppedElement("no_geometry")
			return nil, false
		}
		return element.Geometry, true
	case "relation":
		for _, member := range element.Members {
			if member.Role == "outer" && member.Type == "way" && len(member.Geometry) > 0 {
				return member.Geometry, true
			}
		}
		monitoring.RecordDroppedElement("no_outer_member")
		return nil, false
	default:
		monitoring.RecordDroppedElement("unsupported_type")
		return nil, false
	}
}

// validCoordinate rejects NaN and infinite values.
func validCoordinate(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsInf(lon, 0) &&
		!math.IsNaN(lat) && !math.IsInf(lat, 0)
}

// properties derives the normalized attribute bag from element tags.
func (c *Converter) properties(tags map[string]string) map[string]any {
	props := make(map[string]any)

	label := DisplayLabel(tags)
	props[geojson.PropBuildType] = label
	props[geojson.PropTypeCode] = TypeCode(tags)

	props[geojson.PropAddress] = c.address(tags, label)

	if name, ok := tags["name"]; ok && name != "" {
		props[geojson.PropName] = name
	}

	if floors, ok := parseIntTag(tags, "building:levels", "levels"); ok {
		props[geojson.PropFloors] = floors
	}
	if year, ok := parseIntTag(tags, "start_date", "construction_date"); ok {
		props[geojson.PropYearBuilt] = year
	}

	return props
}

// address prefers street + house number, then name, then the derived
// label.
func (c *Converter) address(tags map[string]string, label string) string {
	street := tags["addr:street"]
	if street != "" {
		if number := tags["addr:housenumber"]; number != "" {
			return street + " " + number
		}
		return street
	}
	if name := tags["name"]; name != "" {
		return name
	}
	return label
}

// parseIntTag parses the first present tag of the given keys as an
// integer. A parse failure yields an absent value, not an error.
func parseIntTag(tags map[string]string, keys ...string) (int, bool) {
	for _, key := range keys {
		value, ok := tags[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
