package tools

import (
	"context"
	"testing"

	"github.com/wienmaps/buildingsmcp/pkg/buildings"
	"github.com/wienmaps/buildingsmcp/pkg/cache"
	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
	"github.com/wienmaps/buildingsmcp/pkg/overpass"
)

type stubFetcher struct {
	elements []overpass.Element
}

func (s *stubFetcher) QueryBuildings(ctx context.Context, bounds geo.Bounds) ([]overpass.Element, error) {
	return s.elements, nil
}

func newTestRegistry() *Registry {
	fetcher := &stubFetcher{
		elements: []overpass.Element{{
			ID:   1,
			Type: "way",
			Tags: map[string]string{"building": "yes", "addr:street": "Graben", "addr:housenumber": "21"},
			Geometry: []overpass.LatLon{
				{Lat: 48.2080, Lon: 16.3720},
				{Lat: 48.2080, Lon: 16.3730},
				{Lat: 48.2090, Lon: 16.3730},
				{Lat: 48.2090, Lon: 16.3720},
			},
		}},
	}
	loader := buildings.NewLoader(
		cache.NewBoundsCache(10),
		fetcher,
		buildings.NewConverter(geo.ViennaRegion, nil),
		buildings.Options{},
	)
	return NewRegistry(nil, loader)
}

func viewportArgs() map[string]any {
	return map[string]any{
		"north": 48.21,
		"south": 48.20,
		"east":  16.38,
		"west":  16.37,
	}
}

func TestHandleLoadBuildings(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandleLoadBuildings(context.Background(), toolRequest("load_buildings", viewportArgs()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	AssertSuccessResult(t, result, "load_buildings should succeed")

	var payload struct {
		Buildings *geojson.FeatureCollection `json:"buildings"`
		Loading   bool                       `json:"loading"`
		Error     string                     `json:"error"`
		CacheInfo buildings.CacheInfo        `json:"cache_info"`
	}
	if err := ParseResultJSON(result, &payload); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}

	if len(payload.Buildings.Features) != 1 {
		t.Errorf("expected 1 building, got %d", len(payload.Buildings.Features))
	}
	if payload.CacheInfo.Size != 1 {
		t.Errorf("expected cache size 1, got %d", payload.CacheInfo.Size)
	}
	if payload.Loading {
		t.Errorf("loading must be false after a synchronous load")
	}
	if got := payload.Buildings.Features[0].Properties[geojson.PropAddress]; got != "Graben 21" {
		t.Errorf("ADRESSE = %v, want %q", got, "Graben 21")
	}
}

func TestHandleLoadBuildingsRejectsInvalidBounds(t *testing.T) {
	r := newTestRegistry()

	args := viewportArgs()
	args["north"] = 120.0
	result, err := r.HandleLoadBuildings(context.Background(), toolRequest("load_buildings", args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsErrorResult(result) {
		t.Errorf("invalid bounds must yield an error result")
	}
}

func TestHandleClearCache(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	if _, err := r.HandleLoadBuildings(ctx, toolRequest("load_buildings", viewportArgs())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := r.HandleClearCache(ctx, toolRequest("clear_building_cache", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	AssertSuccessResult(t, result, "clear_building_cache should succeed")

	var payload struct {
		Cleared   bool                `json:"cleared"`
		CacheInfo buildings.CacheInfo `json:"cache_info"`
	}
	if err := ParseResultJSON(result, &payload); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if !payload.Cleared || payload.CacheInfo.Size != 0 || payload.CacheInfo.TotalBuildings != 0 {
		t.Errorf("clear must reset cache info, got %+v", payload.CacheInfo)
	}
}

func TestHandleCacheInfo(t *testing.T) {
	r := newTestRegistry()

	result, err := r.HandleCacheInfo(context.Background(), toolRequest("building_cache_info", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	AssertSuccessResult(t, result, "building_cache_info should succeed")

	var info buildings.CacheInfo
	if err := ParseResultJSON(result, &info); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if info.Capacity != 10 {
		t.Errorf("expected capacity 10, got %d", info.Capacity)
	}
}
