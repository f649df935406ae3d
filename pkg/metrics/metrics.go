// Package metrics exposes the Prometheus registry of the YouTube metrics
// client. Collectors are defined in their own packages (client, cache,
// quota, pipeline) via promauto to avoid circular dependencies; this
// package serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the registry scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Metric describes one collector of the catalogue.
type Metric struct {
	Name    string
	Type    string
	Package string
	Labels  []string
}

// Catalogue lists every metric the module registers.
var Catalogue = []Metric{
	// pkg/quota
	{Name: "yt_quota_used_units", Type: "gauge", Package: "quota"},
	{Name: "yt_quota_remaining_units", Type: "gauge", Package: "quota"},
	{Name: "yt_quota_blocks_total", Type: "counter", Package: "quota"},
	{Name: "yt_quota_warnings_total", Type: "counter", Package: "quota"},

	// pkg/cache
	{Name: "yt_cache_hits_total", Type: "counter", Package: "cache", Labels: []string{"freshness"}},
	{Name: "yt_cache_misses_total", Type: "counter", Package: "cache"},
	{Name: "yt_cache_stored_bytes_total", Type: "counter", Package: "cache"},
	{Name: "yt_conditional_requests_total", Type: "counter", Package: "cache"},
	{Name: "yt_304_responses_total", Type: "counter", Package: "cache"},
	{Name: "yt_cache_errors_total", Type: "counter", Package: "cache", Labels: []string{"operation"}},

	// pkg/client
	{Name: "yt_requests_total", Type: "counter", Package: "client", Labels: []string{"endpoint", "status"}},
	{Name: "yt_request_duration_seconds", Type: "histogram", Package: "client", Labels: []string{"endpoint"}},
	{Name: "yt_errors_total", Type: "counter", Package: "client", Labels: []string{"class"}},
	{Name: "yt_retries_total", Type: "counter", Package: "client", Labels: []string{"error_class"}},
	{Name: "yt_retry_backoff_seconds", Type: "histogram", Package: "client", Labels: []string{"error_class"}},
	{Name: "yt_retry_exhausted_total", Type: "counter", Package: "client", Labels: []string{"error_class"}},

	// pkg/pipeline
	{Name: "yt_pipeline_runs_total", Type: "counter", Package: "pipeline", Labels: []string{"status"}},
	{Name: "yt_pipeline_duration_seconds", Type: "histogram", Package: "pipeline"},
	{Name: "yt_pipeline_records", Type: "histogram", Package: "pipeline", Labels: []string{"stage"}},
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(yt_cache_hits_total[5m])) /
//   (sum(rate(yt_cache_hits_total[5m])) + sum(rate(yt_cache_misses_total[5m])))
//
//   # Quota left today
//   yt_quota_remaining_units < 1000
//
//   # Request Error Rate
//   rate(yt_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(yt_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(yt_304_responses_total[5m]) / rate(yt_requests_total[5m])
