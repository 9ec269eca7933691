package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency         = "APILatency"
	MetricAPIRequestCount    = "APIRequestCount"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricCacheHit           = "CacheHit"
	MetricCacheMiss          = "CacheMiss"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimProvider = "Provider"
	DimCache    = "Cache"

	// Metric Namespace
	MetricNamespace = "WeatherProxy"
)
