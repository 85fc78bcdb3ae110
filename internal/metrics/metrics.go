// ABOUTME: Prometheus metrics for ingestion, retrieval, assessment, feedback and memory
// ABOUTME: Registered on the default registry and served by the HTTP adapter at /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "riskmem"

var (
	// DocumentsIngested counts documents stored by ingestion
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Documents ingested",
	})

	// ChunksIngested counts embedded chunks stored by ingestion
	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "chunks_total",
		Help:      "Chunks embedded and stored",
	})

	// IngestFailures counts rejected or failed ingestions by reason
	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Failed ingestions by reason",
	}, []string{"reason"})

	// RetrievalDuration tracks hybrid retrieval latency
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "duration_seconds",
		Help:      "Hybrid retrieval duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// RetrievedSections tracks how many sections each retrieval returned
	RetrievedSections = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "sections",
		Help:      "Sections returned per retrieval",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
	})

	// Assessments counts assessment outcomes
	Assessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "total",
		Help:      "Assessments by outcome",
	}, []string{"outcome"})

	// AssessmentDuration tracks end-to-end assessment latency
	AssessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "duration_seconds",
		Help:      "Assessment duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// Feedback counts feedback submissions by verdict
	Feedback = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feedback",
		Name:      "total",
		Help:      "Feedback records by verdict",
	}, []string{"verdict"})

	// MemoryExpirations counts expired memory entries by reason
	MemoryExpirations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "expirations_total",
		Help:      "Memory entries expired by reason",
	}, []string{"reason"})

	// HTTPRequests counts API requests by route and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)
