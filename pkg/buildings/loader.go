package buildings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wienmaps/buildingsmcp/pkg/cache"
	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
	"github.com/wienmaps/buildingsmcp/pkg/monitoring"
	"github.com/wienmaps/buildingsmcp/pkg/overpass"
	"github.com/wienmaps/buildingsmcp/pkg/tracing"
)

// DefaultBufferFraction is the prefetch margin applied to every requested
// viewport before querying.
const DefaultBufferFraction = 0.3

// Fetcher fetches structural elements for a bounds rectangle.
// *overpass.Client satisfies it.
type Fetcher interface {
	QueryBuildings(ctx context.Context, bounds geo.Bounds) ([]overpass.Element, error)
}

// CacheInfo is the cache state surfaced to collaborators.
type CacheInfo struct {
	Size           int `json:"size"`
	TotalBuildings int `json:"total_buildings"`
	Capacity       int `json:"capacity"`
}

// Options configures a Loader.
type Options struct {
	Region         geo.Region
	BufferFraction float64
	Logger         *slog.Logger
}

// Loader orchestrates viewport loads: it buffers the requested bounds,
// consults the bounds cache, de-duplicates concurrent identical requests,
// fetches and converts upstream data, and merges results into the
// accumulated building set.
//
// Callers are expected to debounce rapid viewport-change events (the
// reference behavior settles for 500 ms) before invoking LoadBuildings,
// and to invoke it once more after the map view finishes initial setup.
type Loader struct {
	cache     *cache.BoundsCache
	fetcher   Fetcher
	converter *Converter
	region    geo.Region
	fraction  float64
	logger    *slog.Logger

	// mu guards the accumulated set and the loading/error state.
	mu          sync.Mutex
	accumulated *geojson.FeatureCollection
	seen        map[string]struct{}
	loading     bool
	lastErr     string

	// flightMu guards the in-flight signature set.
	flightMu sync.Mutex
	inFlight map[string]struct{}
}

// NewLoader creates a Loader owning the given cache.
func NewLoader(c *cache.BoundsCache, fetcher Fetcher, converter *Converter, opts Options) *Loader {
	if opts.BufferFraction <= 0 {
		opts.BufferFraction = DefaultBufferFraction
	}
	if opts.Region == (geo.Region{}) {
		opts.Region = geo.ViennaRegion
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{
		cache:       c,
		fetcher:     fetcher,
		converter:   converter,
		region:      opts.Region,
		fraction:    opts.BufferFraction,
		logger:      opts.Logger.With("component", "loader"),
		accumulated: geojson.NewFeatureCollection(),
		seen:        make(map[string]struct{}),
		inFlight:    make(map[string]struct{}),
	}
}

// LoadBuildings loads the building footprints for one settled viewport.
// Out-of-region viewports and viewports whose buffered signature is
// already being fetched are silent no-ops. A cache hit merges without a
// network call. Failures set the error state but preserve previously
// accumulated features.
func (l *Loader) LoadBuildings(ctx context.Context, bounds geo.Bounds) error {
	if !bounds.WithinRegion(l.region) {
		l.logger.Debug("viewport outside coverage region, skipping",
			"bounds", bounds.Signature())
		return nil
	}

	buffered := bounds.Buffer(l.fraction)
	sig := buffered.Signature()

	l.flightMu.Lock()
	if _, busy := l.inFlight[sig]; busy {
		l.flightMu.Unlock()
		l.logger.Debug("fetch already in flight, skipping", "signature", sig)
		return nil
	}

	if cached, ok := l.cache.Get(buffered); ok {
		l.flightMu.Unlock()
		monitoring.RecordCacheHit()
		merged := l.merge(cached)
		l.logger.Debug("cache hit", "signature", sig, "merged", merged)
		return nil
	}

	l.inFlight[sig] = struct{}{}
	l.flightMu.Unlock()

	monitoring.RecordCacheMiss()
	monitoring.InFlightFetches.Inc()
	l.setLoading()

	defer func() {
		l.flightMu.Lock()
		delete(l.inFlight, sig)
		l.flightMu.Unlock()

		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
		monitoring.InFlightFetches.Dec()
	}()

	ctx, span := tracing.StartSpan(ctx, "loader.load_buildings",
		trace.WithAttributes(
			attribute.String(tracing.AttrLoaderSignature, sig),
			attribute.String(tracing.AttrLoaderBounds, buffered.QueryBbox()),
		),
	)
	defer span.End()

	elements, err := l.fetcher.QueryBuildings(ctx, buffered)
	if err != nil {
		message := fmt.Sprintf("loading buildings failed: %v", err)
		l.mu.Lock()
		l.lastErr = message
		l.mu.Unlock()
		monitoring.RecordError("loader", "fetch")
		span.RecordError(err)
		l.logger.Error("upstream fetch failed", "signature", sig, "error", err)
		return err
	}

	features := l.converter.Convert(elements)
	l.cache.Put(buffered, features)
	monitoring.UpdateCacheSize(l.cache.Size())

	merged := l.merge(features)
	span.SetAttributes(attribute.Int(tracing.AttrLoaderMerged, merged))
	l.logger.Info("viewport loaded",
		"signature", sig,
		"elements", len(elements),
		"features", len(features.Features),
		"merged", merged,
	)
	return nil
}

// setLoading marks the loader busy and clears any prior error.
func (l *Loader) setLoading() {
	l.mu.Lock()
	l.loading = true
	l.lastErr = ""
	l.mu.Unlock()
}

// firstRingPointKey is the cheap de-duplication key: the string-joined
// first boundary coordinate of the feature.
func firstRingPointKey(f geojson.Feature) (string, bool) {
	ring := f.OuterRing()
	if len(ring) == 0 {
		return "", false
	}
	return strconv.FormatFloat(ring[0][0], 'f', -1, 64) + "," +
		strconv.FormatFloat(ring[0][1], 'f', -1, 64), true
}

// merge appends features whose first ring point has not been seen before.
// The rule makes the accumulated set invariant to the completion order of
// concurrent loads with equal content. Returns the number appended.
func (l *Loader) merge(fc *geojson.FeatureCollection) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := 0
	for _, feature := range fc.Features {
		key, ok := firstRingPointKey(feature)
		if !ok {
			continue
		}
		if _, dup := l.seen[key]; dup {
			continue
		}
		l.seen[key] = struct{}{}
		l.accumulated.Features = append(l.accumulated.Features, feature)
		merged++
	}
	monitoring.UpdateAccumulatedBuildings(len(l.accumulated.Features))
	return merged
}

// ClearCache empties the bounds cache and resets the accumulated building
// set. This is an explicit full reset, not partial invalidation.
func (l *Loader) ClearCache() {
	l.cache.Clear()

	l.mu.Lock()
	l.accumulated = geojson.NewFeatureCollection()
	l.seen = make(map[string]struct{})
	l.lastErr = ""
	l.mu.Unlock()

	monitoring.UpdateCacheSize(0)
	monitoring.UpdateAccumulatedBuildings(0)
	l.logger.Info("cache and accumulated set cleared")
}

// Loading reports whether a fetch is currently running.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// LastError returns the most recent fetch error message, or "" when the
// last fetch succeeded.
func (l *Loader) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// CacheInfo returns the observable cache state.
func (l *Loader) CacheInfo() CacheInfo {
	l.mu.Lock()
	total := len(l.accumulated.Features)
	l.mu.Unlock()

	return CacheInfo{
		Size:           l.cache.Size(),
		TotalBuildings: total,
		Capacity:       l.cache.Capacity(),
	}
}

// Snapshot returns a copy of the accumulated feature collection. The
// returned collection is safe to serialize concurrently with further
// loads.
func (l *Loader) Snapshot() *geojson.FeatureCollection {
	l.mu.Lock()
	defer l.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, l.accumulated.Features...)
	return fc
}
