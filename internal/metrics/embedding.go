package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding request outcomes, used as the "status" label.
const (
	EmbeddingSuccess           = "success"
	EmbeddingAPIError          = "api_error"
	EmbeddingEmptyResponse     = "empty_response"
	EmbeddingDimensionMismatch = "dimension_mismatch"
	EmbeddingBadImage          = "bad_image"
)

// Embedding Prometheus metrics. Every series is split by modality, since text and image
// inputs differ in cost and failure modes.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "embedding_requests_total",
			Help:      "Embedding requests by outcome",
		},
		[]string{"provider", "model", "modality", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adoptapet",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request round-trip in seconds, failed requests included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model", "modality"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "embedding_tokens_total",
			Help:      "Embedding tokens reported by the provider",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "total"
	)

	EmbeddingImageBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "adoptapet",
			Name:      "embedding_image_bytes",
			Help:      "Size of uploaded query images before resizing",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adoptapet",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"modality", "result"}, // "hit" / "miss"
	)
)

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers Prometheus embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingImageBytes,
		EmbeddingCacheTotal,
	)
	embMetricsRegistered = true
}

// ObserveEmbedding records one embedding outcome. A zero duration means no request was sent.
func ObserveEmbedding(provider, model, modality, status string, d time.Duration) {
	EmbeddingRequestsTotal.WithLabelValues(provider, model, modality, status).Inc()
	if d > 0 {
		EmbeddingRequestDuration.WithLabelValues(provider, model, modality).Observe(d.Seconds())
	}
}

// AddEmbeddingTokens records provider-reported token usage.
func AddEmbeddingTokens(provider, model string, prompt, total int) {
	if total <= 0 {
		return
	}
	EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(total))
}
