package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_documents_processed_total",
			Help: "Total documents processed, by result status",
		},
		[]string{"status"},
	)

	ChunksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_chunks_created_total",
			Help: "Total chunks created, by chunking method",
		},
		[]string{"method"},
	)

	ChunkingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docindexer_chunking_duration_seconds",
			Help:    "Chunking duration in seconds, by method",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"method"},
	)

	PreservationRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docindexer_preservation_char_ratio",
			Help:    "Content preservation character ratio, by method",
			Buckets: []float64{0.5, 0.8, 0.85, 0.9, 0.95, 1.0, 1.05, 1.1, 1.15, 1.5},
		},
		[]string{"method"},
	)

	AIFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_ai_fallbacks_total",
			Help: "Enrichment fallbacks taken, by field and reason",
		},
		[]string{"field", "reason"},
	)

	IndexUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_index_uploads_total",
			Help: "Search index document uploads, by status",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PolicyClausesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docindexer_policy_clauses_processed_total",
			Help: "Policy clauses analyzed, by severity",
		},
		[]string{"severity"},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksCreated)
	prometheus.MustRegister(ChunkingDuration)
	prometheus.MustRegister(PreservationRatio)
	prometheus.MustRegister(AIFallbacks)
	prometheus.MustRegister(IndexUploads)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PolicyClausesProcessed)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
