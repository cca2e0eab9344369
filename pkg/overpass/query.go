package overpass

import (
	"fmt"
	"strings"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
)

// StructuralTagKeys is the fixed list of tag keys identifying built
// structures. The query requests ways and relations carrying any of them.
var StructuralTagKeys = []string{
	"building",
	"building:part",
	"landuse",
	"man_made",
	"amenity",
	"leisure",
	"shop",
	"office",
	"tourism",
	"historic",
	"aeroway",
	"railway",
	"public_transport",
	"craft",
	"industrial",
}

// QueryBuilder provides a fluent interface for building the buildings
// query sent to the Overpass API.
type QueryBuilder struct {
	timeout int
	bbox    string
	keys    []string
}

// NewQueryBuilder creates a builder with default settings.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		timeout: 25,
		keys:    StructuralTagKeys,
	}
}

// WithTimeout sets the server-side query timeout in seconds.
func (b *QueryBuilder) WithTimeout(seconds int) *QueryBuilder {
	b.timeout = seconds
	return b
}

// WithBounds sets the bounding box filter from viewport bounds.
func (b *QueryBuilder) WithBounds(bounds geo.Bounds) *QueryBuilder {
	b.bbox = bounds.QueryBbox()
	return b
}

// WithBbox sets the bounding box filter from a pre-formatted
// south,west,north,east string.
func (b *QueryBuilder) WithBbox(bbox string) *QueryBuilder {
	b.bbox = bbox
	return b
}

// WithTagKeys overrides the structural tag key list.
func (b *QueryBuilder) WithTagKeys(keys ...string) *QueryBuilder {
	b.keys = keys
	return b
}

// Build generates the Overpass query string. Ways and relations matching
// any structural key are requested with full geometry in the response.
func (b *QueryBuilder) Build() string {
	var query strings.Builder

	query.WriteString(fmt.Sprintf("[out:json][timeout:%d];", b.timeout))
	query.WriteString("(")
	for _, key := range b.keys {
		query.WriteString(fmt.Sprintf("way[%q](%s);", key, b.bbox))
		query.WriteString(fmt.Sprintf("relation[%q](%s);", key, b.bbox))
	}
	query.WriteString(");out geom;")

	return query.String()
}
