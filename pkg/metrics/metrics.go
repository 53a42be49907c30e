// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal    prometheus.Counter
	RunFilesWritten     prometheus.Counter
	MergePassesTotal    prometheus.Counter
	TermsEmittedTotal   prometheus.Counter
	QueriesTotal        *prometheus.CounterVec
	QueryLatency        *prometheus.HistogramVec
	PostingsFetched     prometheus.Histogram
	CandidateSetSize    prometheus.Histogram
	RerankBatchSize     prometheus.Histogram
	RerankQueueDepth    prometheus.Gauge
	RerankJobsTotal     *prometheus.CounterVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	ShardDictionarySize *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents written to the document store.",
			},
		),
		RunFilesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_run_files_total",
				Help: "Total sorted run files spilled during indexing.",
			},
		),
		MergePassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_merge_passes_total",
				Help: "Total pairwise merge passes executed.",
			},
		),
		TermsEmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_terms_emitted_total",
				Help: "Total distinct terms written to shard dictionaries.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (ok, zero_result, malformed, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Query latency in seconds by stage.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
		PostingsFetched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postings_fetched_per_query",
				Help:    "Number of posting lists fetched per query.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 50, 100},
			},
		),
		CandidateSetSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "candidate_set_size",
				Help:    "Boolean candidate set size per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		RerankBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rerank_batch_size",
				Help:    "Candidates per inference batch.",
				Buckets: []float64{1, 8, 16, 32, 64, 128, 256},
			},
		),
		RerankQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rerank_queue_depth",
				Help: "Jobs waiting in the rerank queue.",
			},
		),
		RerankJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rerank_jobs_total",
				Help: "Total rerank jobs by outcome (ok, error, cancelled, unavailable).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total result-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total result-cache misses.",
			},
		),
		ShardDictionarySize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_dictionary_terms",
				Help: "Number of dictionary terms per shard.",
			},
			[]string{"shard_id"},
		),
	}

	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.RunFilesWritten,
		m.MergePassesTotal,
		m.TermsEmittedTotal,
		m.QueriesTotal,
		m.QueryLatency,
		m.PostingsFetched,
		m.CandidateSetSize,
		m.RerankBatchSize,
		m.RerankQueueDepth,
		m.RerankJobsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ShardDictionarySize,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
