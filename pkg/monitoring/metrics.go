package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ServiceName is the service label used in metrics
	ServiceName = "buildingsmcp"
)

var (
	// MCP tool metrics
	ToolRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildingsmcp_tool_requests_total",
			Help: "Total number of MCP tool requests processed",
		},
		[]string{"tool", "status"},
	)

	ToolRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildingsmcp_tool_request_duration_seconds",
			Help:    "MCP tool request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Upstream service metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildingsmcp_upstream_requests_total",
			Help: "Total number of upstream spatial-query requests",
		},
		[]string{"service", "operation", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildingsmcp_upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildingsmcp_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for upstream rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Bounds cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildingsmcp_bounds_cache_hits_total",
			Help: "Total number of bounds cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildingsmcp_bounds_cache_misses_total",
			Help: "Total number of bounds cache misses",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_bounds_cache_size",
			Help: "Current number of cached regions",
		},
	)

	// Loader metrics
	AccumulatedBuildings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_accumulated_buildings",
			Help: "Number of building features in the accumulated set",
		},
	)

	InFlightFetches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_in_flight_fetches",
			Help: "Number of viewport fetches currently in flight",
		},
	)

	// Converter metrics
	ConvertedElements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildingsmcp_converted_elements_total",
			Help: "Total number of upstream elements converted into features",
		},
	)

	DroppedElements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildingsmcp_dropped_elements_total",
			Help: "Total number of upstream elements rejected during conversion",
		},
		[]string{"reason"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildingsmcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildingsmcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// Helper functions for common metric updates

func RecordToolRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ToolRequestsTotal.WithLabelValues(tool, status).Inc()
	ToolRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordUpstreamRequest(service, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(service, operation, status).Inc()
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func UpdateCacheSize(size int) {
	CacheSize.Set(float64(size))
}

func UpdateAccumulatedBuildings(count int) {
	AccumulatedBuildings.Set(float64(count))
}

func RecordDroppedElement(reason string) {
	DroppedElements.WithLabelValues(reason).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
