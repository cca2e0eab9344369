// Package geojson defines the feature collection emitted to map-rendering
// consumers. It follows the standard GeoJSON structure.
package geojson

// Property keys used by the rendering layer. The German names come from the
// Viennese building register the frontend styling was written against.
const (
	PropAddress   = "ADRESSE"
	PropBuildType = "BAUWEISE"
	PropFloors    = "STOCKWERKE"
	PropYearBuilt = "BAUJAHR"
	PropName      = "NAME"
	PropTypeCode  = "TYP"
)

// FeatureCollection is a collection of geographic features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single geographic feature with geometry and properties.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry holds a polygon boundary. Coordinates are one or more rings of
// [lon, lat] pairs; the engine only ever emits a single outer ring.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// NewFeatureCollection returns an empty collection with the standard type tag.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}
}

// NewPolygonFeature builds a Feature around a single closed ring.
func NewPolygonFeature(ring [][2]float64, properties map[string]any) Feature {
	return Feature{
		Type:       "Feature",
		Properties: properties,
		Geometry: Geometry{
			Type:        "Polygon",
			Coordinates: [][][2]float64{ring},
		},
	}
}

// OuterRing returns the feature's first ring, or nil when the geometry is
// empty.
func (f Feature) OuterRing() [][2]float64 {
	if len(f.Geometry.Coordinates) == 0 {
		return nil
	}
	return f.Geometry.Coordinates[0]
}
