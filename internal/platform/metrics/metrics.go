package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts finished submissions by terminal result.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_relay_submissions_total",
			Help: "Total number of submissions handled, by result",
		},
		[]string{"result"}, // accepted, rejected, indeterminate, verification_failed, validation_failed, unexpected
	)

	// UpstreamDuration tracks calls to the verification service and the form processor.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_relay_upstream_duration_seconds",
			Help:    "Upstream call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		},
		[]string{"stage", "status"},
	)

	// RelayHops records how many hops a relay needed to reach its verdict.
	RelayHops = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_relay_hops",
			Help:    "Number of downstream requests per relay",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"outcome"},
	)

	// HTTPRequestDuration tracks inbound request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"method", "path", "status"},
	)
)

// IncSubmission counts one finished submission.
func IncSubmission(result string) {
	SubmissionsTotal.WithLabelValues(result).Inc()
}

// ObserveUpstream records an upstream call. status is an HTTP code, "0" for
// transport failures, or a stage-specific label such as "passed".
func ObserveUpstream(stage, status string, d time.Duration) {
	UpstreamDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// ObserveHops records the hop count of a verdict.
func ObserveHops(outcome string, hops int) {
	RelayHops.WithLabelValues(outcome).Observe(float64(hops))
}

// ObserveHTTPRequest records an inbound request.
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}
