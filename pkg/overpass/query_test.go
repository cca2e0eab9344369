package overpass

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
)

func TestQueryBuilderDefaults(t *testing.T) {
	bounds := geo.Bounds{North: 48.213, South: 48.197, East: 16.383, West: 16.367}
	query := NewQueryBuilder().WithBounds(bounds).Build()

	if !strings.HasPrefix(query, "[out:json][timeout:25];(") {
		t.Errorf("unexpected query prefix: %s", query)
	}
	if !strings.HasSuffix(query, ");out geom;") {
		t.Errorf("query must request geometry output: %s", query)
	}

	// Every structural key must be requested for both ways and relations.
	for _, key := range StructuralTagKeys {
		way := fmt.Sprintf("way[%q]", key)
		rel := fmt.Sprintf("relation[%q]", key)
		if !strings.Contains(query, way) {
			t.Errorf("query missing %s", way)
		}
		if !strings.Contains(query, rel) {
			t.Errorf("query missing %s", rel)
		}
	}

	// Bbox filter must be in south,west,north,east order.
	if !strings.Contains(query, "(48.197000,16.367000,48.213000,16.383000)") {
		t.Errorf("query missing bbox filter: %s", query)
	}
}

func TestQueryBuilderOverrides(t *testing.T) {
	query := NewQueryBuilder().
		WithTimeout(60).
		WithBbox("48.1,16.3,48.2,16.4").
		WithTagKeys("building").
		Build()

	want := `[out:json][timeout:60];(way["building"](48.1,16.3,48.2,16.4);relation["building"](48.1,16.3,48.2,16.4););out geom;`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
}
