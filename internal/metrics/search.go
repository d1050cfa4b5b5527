package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adoptapet",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds, embedding included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind", "outcome"},
	)

	SearchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adoptapet",
			Name:      "search_candidates",
			Help:      "Raw candidates considered per search, before dedup",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"kind"},
	)

	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "fetch_attempts_total",
			Help:      "Index query attempts per partition and outcome",
		},
		[]string{"partition", "outcome"}, // "success" / "retryable" / "fatal"
	)

	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "fetch_failures_total",
			Help:      "Fetch tasks that failed after all retries",
		},
		[]string{"partition"},
	)

	DegradedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "degraded_responses_total",
			Help:      "Searches answered with at least one failed partition",
		},
		[]string{"kind"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCandidates)
	prometheus.MustRegister(FetchAttemptsTotal)
	prometheus.MustRegister(FetchFailuresTotal)
	prometheus.MustRegister(DegradedResponsesTotal)
	searchMetricsRegistered = true
}
