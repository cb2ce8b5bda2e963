package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding, generation and index Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyrag",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding batch requests",
		},
		[]string{"provider", "status"},
	)

	EmbeddingTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyrag",
			Name:      "embedding_texts_total",
			Help:      "Total number of texts sent for embedding",
		},
		[]string{"provider"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studyrag",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding batch request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyrag",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studyrag",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	IndexFitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "studyrag",
			Name:      "index_fit_duration_seconds",
			Help:      "Time to embed and index one document",
			Buckets:   prometheus.DefBuckets,
		},
	)

	RegisteredCorpora = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studyrag",
			Name:      "registered_corpora",
			Help:      "Number of documents registered in the active session",
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingTextsTotal,
			EmbeddingRequestDuration,
			GenerationRequestsTotal,
			GenerationRequestDuration,
			IndexFitDuration,
			RegisteredCorpora,
			HTTPRequestDuration,
			HTTPRequestsTotal,
		)
	})
}
