// Package cache provides the bounded bounds-keyed cache of previously
// fetched building regions, so panning and zooming do not repeat
// upstream queries.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
)

// DefaultCapacity is the default number of cached regions.
const DefaultCapacity = 50

// Entry is one cached region. Entries are replaced, never mutated in place.
type Entry struct {
	Signature string
	Bounds    geo.Bounds
	Features  *geojson.FeatureCollection
	StoredAt  time.Time
}

// BoundsCache is an LRU store of fetched regions keyed by the quantized
// bounds signature. None of its operations fail; capacity and key-collision
// handling are plain data-structure behavior, not errors.
type BoundsCache struct {
	entries  *lru.Cache[string, *Entry]
	capacity int
}

// NewBoundsCache creates a cache holding at most capacity regions.
// Non-positive capacities fall back to DefaultCapacity.
func NewBoundsCache(capacity int) *BoundsCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[string, *Entry](capacity)
	if err != nil {
		entries, _ = lru.New[string, *Entry](DefaultCapacity)
		capacity = DefaultCapacity
	}
	return &BoundsCache{entries: entries, capacity: capacity}
}

// Put stores a fetched region under its bounds signature. At capacity the
// least-recently-used entry is evicted first; re-putting an existing
// signature replaces its data and refreshes its recency.
func (c *BoundsCache) Put(bounds geo.Bounds, features *geojson.FeatureCollection) {
	sig := bounds.Signature()
	c.entries.Add(sig, &Entry{
		Signature: sig,
		Bounds:    bounds,
		Features:  features,
		StoredAt:  time.Now(),
	})
}

// Get performs an exact-signature lookup. A hit promotes the entry to
// most-recently-used.
func (c *BoundsCache) Get(bounds geo.Bounds) (*geojson.FeatureCollection, bool) {
	entry, ok := c.entries.Get(bounds.Signature())
	if !ok {
		return nil, false
	}
	return entry.Features, true
}

// FindOverlapping returns the payloads of all entries whose stored bounds
// overlap the query bounds, in arbitrary order. The scan is read-only for
// LRU purposes: recency is not affected.
func (c *BoundsCache) FindOverlapping(bounds geo.Bounds) []*geojson.FeatureCollection {
	var out []*geojson.FeatureCollection
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if entry.Bounds.Overlaps(bounds) {
			out = append(out, entry.Features)
		}
	}
	return out
}

// Clear empties the cache.
func (c *BoundsCache) Clear() {
	c.entries.Purge()
}

// Size returns the current entry count.
func (c *BoundsCache) Size() int {
	return c.entries.Len()
}

// Capacity returns the configured maximum entry count.
func (c *BoundsCache) Capacity() int {
	return c.capacity
}
