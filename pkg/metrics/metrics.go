// Package metrics documents the Prometheus metrics exposed by the Strava
// client. Metrics are defined next to the code that records them (pkg/client,
// pkg/ratelimit) via promauto; this package only provides the registry
// reference and an overview.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by the client. All metrics
// register automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Request metrics (pkg/client):
//   - strava_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - strava_request_duration_seconds{endpoint} (Histogram): round-trip duration
//   - strava_errors_total{kind} (Counter): typed API errors by kind
//
// Rate limit metrics (pkg/ratelimit):
//   - strava_rate_limit_usage{window} (Gauge): requests used, window is fifteen_minute or daily
//   - strava_rate_limit_limit{window} (Gauge): requests allowed per window
//   - strava_rate_limit_parse_failures_total (Counter): malformed rate limit headers
//
// Example queries:
//
//   # Request error rate
//   rate(strava_errors_total[5m])
//
//   # 15-minute budget saturation
//   strava_rate_limit_usage{window="fifteen_minute"} / strava_rate_limit_limit{window="fifteen_minute"}
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(strava_request_duration_seconds_bucket[5m]))
