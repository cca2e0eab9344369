package cache

import (
	"fmt"
	"testing"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
)

// boundsAt builds a small distinct rectangle offset by i hundredths of a
// degree east of the Vienna city center.
func boundsAt(i int) geo.Bounds {
	base := 16.30 + float64(i)*0.01
	return geo.Bounds{North: 48.21, South: 48.20, East: base + 0.01, West: base}
}

func collectionOf(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		ring := [][2]float64{
			{16.37, 48.20}, {16.38, 48.20}, {16.38, 48.21}, {16.37, 48.20},
		}
		fc.Features = append(fc.Features, geojson.NewPolygonFeature(ring, map[string]any{
			geojson.PropName: fmt.Sprintf("feature-%d", i),
		}))
	}
	return fc
}

func TestPutAndGet(t *testing.T) {
	c := NewBoundsCache(10)

	b := boundsAt(0)
	c.Put(b, collectionOf(2))

	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}

	fc, ok := c.Get(b)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(fc.Features) != 2 {
		t.Errorf("expected 2 features, got %d", len(fc.Features))
	}
}

func TestGetMiss(t *testing.T) {
	c := NewBoundsCache(10)
	if _, ok := c.Get(boundsAt(3)); ok {
		t.Errorf("expected miss on empty cache")
	}
}

func TestQuantizedKeysCollapse(t *testing.T) {
	c := NewBoundsCache(10)

	a := geo.Bounds{North: 48.21001, South: 48.20, East: 16.38, West: 16.37}
	b := geo.Bounds{North: 48.20999, South: 48.20, East: 16.38, West: 16.37}

	c.Put(a, collectionOf(1))
	c.Put(b, collectionOf(2))

	if c.Size() != 1 {
		t.Fatalf("bounds rounding alike must share one entry, size = %d", c.Size())
	}
	fc, ok := c.Get(a)
	if !ok || len(fc.Features) != 2 {
		t.Errorf("re-put must replace the entry's data")
	}
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := NewBoundsCache(3)

	for i := 0; i < 4; i++ {
		c.Put(boundsAt(i), collectionOf(1))
	}

	if c.Size() != 3 {
		t.Fatalf("size must never exceed capacity, got %d", c.Size())
	}
	if _, ok := c.Get(boundsAt(0)); ok {
		t.Errorf("oldest entry must be evicted")
	}
	if _, ok := c.Get(boundsAt(3)); !ok {
		t.Errorf("newest entry must survive")
	}
}

func TestGetPromotesRecency(t *testing.T) {
	c := NewBoundsCache(3)

	c.Put(boundsAt(0), collectionOf(1))
	c.Put(boundsAt(1), collectionOf(1))
	c.Put(boundsAt(2), collectionOf(1))

	// Touch entry 0, then overflow: entry 1 is now the oldest.
	if _, ok := c.Get(boundsAt(0)); !ok {
		t.Fatalf("expected hit for entry 0")
	}
	c.Put(boundsAt(3), collectionOf(1))

	if _, ok := c.Get(boundsAt(1)); ok {
		t.Errorf("entry 1 should have been evicted")
	}
	if _, ok := c.Get(boundsAt(0)); !ok {
		t.Errorf("promoted entry 0 should have survived")
	}
}

func TestFindOverlapping(t *testing.T) {
	c := NewBoundsCache(10)

	near := geo.Bounds{North: 48.22, South: 48.20, East: 16.39, West: 16.37}
	touching := geo.Bounds{North: 48.24, South: 48.22, East: 16.39, West: 16.37}
	far := geo.Bounds{North: 48.40, South: 48.38, East: 16.90, West: 16.88}

	c.Put(near, collectionOf(1))
	c.Put(touching, collectionOf(2))
	c.Put(far, collectionOf(3))

	query := geo.Bounds{North: 48.22, South: 48.21, East: 16.38, West: 16.375}
	hits := c.FindOverlapping(query)
	if len(hits) != 2 {
		t.Fatalf("expected 2 overlapping entries, got %d", len(hits))
	}

	// The scan must not change recency: overflowing by one still evicts the
	// entry that was inserted first.
	c.Put(boundsAt(5), collectionOf(1))
	c.Put(boundsAt(6), collectionOf(1))
	c.Put(boundsAt(7), collectionOf(1))
	c.Put(boundsAt(8), collectionOf(1))
	c.Put(boundsAt(9), collectionOf(1))
	c.Put(boundsAt(10), collectionOf(1))
	c.Put(boundsAt(11), collectionOf(1))
	c.Put(boundsAt(12), collectionOf(1))
	if _, ok := c.Get(near); ok {
		t.Errorf("oldest entry must be evicted even after a FindOverlapping scan")
	}
}

func TestClear(t *testing.T) {
	c := NewBoundsCache(10)
	c.Put(boundsAt(0), collectionOf(1))
	c.Put(boundsAt(1), collectionOf(1))

	c.Clear()

	if c.Size() != 0 {
		t.Errorf("expected size 0 after clear, got %d", c.Size())
	}
	if _, ok := c.Get(boundsAt(0)); ok {
		t.Errorf("expected miss after clear")
	}
}

func TestCapacityFallback(t *testing.T) {
	c := NewBoundsCache(0)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("expected fallback to default capacity, got %d", c.Capacity())
	}
}
