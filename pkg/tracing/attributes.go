package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for loader and upstream operations
const (
	// Loader attributes
	AttrLoaderBounds    = "loader.bounds"
	AttrLoaderSignature = "loader.signature"
	AttrLoaderOutcome   = "loader.outcome"
	AttrLoaderMerged    = "loader.merged_features"

	// External service attributes
	AttrServiceName      = "upstream.service.name"
	AttrServiceOperation = "upstream.service.operation"
	AttrServiceURL       = "upstream.service.url"
	AttrServiceStatus    = "upstream.service.status"

	// Cache attributes
	AttrCacheHit  = "bounds_cache.hit"
	AttrCacheKey  = "bounds_cache.key"
	AttrCacheSize = "bounds_cache.size"

	// Rate limiting attributes
	AttrRateLimitService = "ratelimit.service"
	AttrRateLimitWaitMs  = "ratelimit.wait_ms"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceOverpass = "overpass"
)

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for bounds cache lookups
func CacheAttributes(hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
