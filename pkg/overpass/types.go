package overpass

// LatLon is one vertex of a way geometry as returned by the Overpass API.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member is one member of a multipolygon relation.
type Member struct {
	Type     string   `json:"type"`
	Ref      int64    `json:"ref"`
	Role     string   `json:"role"`
	Geometry []LatLon `json:"geometry,omitempty"`
}

// Element represents a way or relation returned from the Overpass API
// with full geometry ("out geom").
type Element struct {
	ID       int64             `json:"id"`
	Type     string            `json:"type"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"` // for ways
	Members  []Member          `json:"members,omitempty"`  // for relations
}

// Response is the top-level Overpass API response shape.
type Response struct {
	Elements []Element `json:"elements"`
}
