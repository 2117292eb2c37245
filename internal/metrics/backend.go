package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval backend Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "backend_requests_total",
			Help:      "Total number of retrieval backend requests",
		},
		[]string{"endpoint", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mmdex",
			Name:      "backend_request_duration_seconds",
			Help:      "Retrieval backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "backend_errors_total",
			Help:      "Total retrieval backend errors",
		},
		[]string{"endpoint", "error_type"},
	)

	BackendSkippedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "backend_skipped_records_total",
			Help:      "Records dropped from backend responses because they failed validation",
		},
		[]string{"endpoint"},
	)
)

var backendMetricsRegistered bool

// RegisterBackendMetrics registers Prometheus backend metrics. Must be called once from main.
func RegisterBackendMetrics() {
	if backendMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(BackendSkippedRecordsTotal)
	backendMetricsRegistered = true
}
