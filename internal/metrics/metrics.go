// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestJobsTotal counts finished ingest jobs by final status.
	IngestJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funneldash_ingest_jobs_total",
		Help: "Ingest jobs finished, labeled by final status.",
	}, []string{"status"})

	// FilesDecodedTotal counts uploaded files by decode outcome.
	FilesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funneldash_files_decoded_total",
		Help: "Uploaded files decoded, labeled by outcome.",
	}, []string{"outcome"})

	// RowsNormalizedTotal counts rows that passed normalization.
	RowsNormalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funneldash_rows_normalized_total",
		Help: "Rows normalized across all ingest jobs.",
	})

	// IngestDuration observes wall-clock time per ingest job.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funneldash_ingest_duration_seconds",
		Help:    "Wall-clock duration of ingest jobs.",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funneldash_http_requests_total",
		Help: "HTTP requests served, labeled by route and status code.",
	}, []string{"route", "code"})
)
