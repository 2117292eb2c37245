package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// Console session Prometheus metrics.
var (
	StaleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "stale_responses_total",
			Help:      "Backend completions discarded because a newer action superseded them",
		},
		[]string{"op"},
	)

	ClusteredResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "clustered_results_total",
			Help:      "Results assigned to each confidence category",
		},
		[]string{"category"},
	)

	SessionStoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mmdex",
			Name:      "session_store_ops_total",
			Help:      "Session state store operations",
		},
		[]string{"op", "status"},
	)
)

var consoleMetricsRegistered bool

// RegisterConsoleMetrics registers Prometheus console metrics. Must be called once from main.
func RegisterConsoleMetrics() {
	if consoleMetricsRegistered {
		return
	}
	prometheus.MustRegister(StaleResponsesTotal)
	prometheus.MustRegister(ClusteredResultsTotal)
	prometheus.MustRegister(SessionStoreOpsTotal)
	consoleMetricsRegistered = true
}

// Recorder feeds use case and repository observations into Prometheus.
type Recorder struct{}

// StaleResponse counts a discarded completion.
func (Recorder) StaleResponse(op string) {
	StaleResponsesTotal.WithLabelValues(op).Inc()
}

// Clustered counts results per category.
func (Recorder) Clustered(counts map[result.Category]int) {
	for c, n := range counts {
		label := string(c)
		if label == "" {
			label = "unclustered"
		}
		ClusteredResultsTotal.WithLabelValues(label).Add(float64(n))
	}
}

// SessionOp counts a session store operation.
func (Recorder) SessionOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SessionStoreOpsTotal.WithLabelValues(op, status).Inc()
}
