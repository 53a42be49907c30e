// Package benchmark sweeps a topic set through the query pipeline, aggregates
// latency and quality metrics, and appends one summary row per run to the
// results CSV (and optionally Postgres and Kafka).
package benchmark

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/cascadeir/cascade/internal/analytics"
	"github.com/cascadeir/cascade/internal/evaluation"
	"github.com/cascadeir/cascade/internal/pipeline"
	"github.com/cascadeir/cascade/internal/trec"
	"github.com/cascadeir/cascade/pkg/config"
)

// ResultsFileName is the append-only CSV under the results directory.
const ResultsFileName = "all_benchmarks.csv"

// Runner executes every topic once and summarises the sweep.
type Runner struct {
	engine    *pipeline.Engine
	cfg       config.BenchmarkConfig
	workers   int
	reranking bool
	store     *Store
	collector *analytics.Collector
	logger    *slog.Logger
}

// New creates a Runner. store and collector are optional.
func New(engine *pipeline.Engine, cfg config.BenchmarkConfig, workers int, reranking bool, store *Store, collector *analytics.Collector) *Runner {
	return &Runner{
		engine:    engine,
		cfg:       cfg,
		workers:   workers,
		reranking: reranking,
		store:     store,
		collector: collector,
		logger:    slog.Default().With("component", "benchmark-runner"),
	}
}

// Run executes all topics sequentially, evaluates the rankings against the
// judgments, and appends the summary row.
func (r *Runner) Run(ctx context.Context, topics []trec.Topic, judgments evaluation.Judgments) (Row, error) {
	rankings := make(map[string][]uint32, len(topics))
	latencies := make([]float64, 0, len(topics))
	var totalRetrievalMs, totalRerankMs float64

	sweepStart := time.Now()
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return Row{}, err
		}
		queryStart := time.Now()
		result, err := r.engine.Search(ctx, topic.Title)
		if err != nil {
			r.logger.Error("query failed", "query_id", topic.ID, "error", err)
			rankings[topic.ID] = nil
			continue
		}
		latencyMs := float64(time.Since(queryStart).Microseconds()) / 1000.0
		latencies = append(latencies, latencyMs)
		totalRetrievalMs += result.Metrics.RetrievalMs
		totalRerankMs += result.Metrics.RerankMs

		ranked := make([]uint32, len(result.Ranked))
		for i, sr := range result.Ranked {
			ranked[i] = sr.DocID
		}
		rankings[topic.ID] = ranked

		if r.collector != nil {
			r.collector.Record(analytics.QueryEvent{
				Type:          analytics.EventQuery,
				QueryID:       topic.ID,
				Query:         topic.Title,
				NumCandidates: result.Metrics.NumCandidates,
				NumRanked:     len(ranked),
				RetrievalMs:   result.Metrics.RetrievalMs,
				RerankMs:      result.Metrics.RerankMs,
				UsedReranking: r.reranking,
				Timestamp:     time.Now().UTC(),
			})
		}
	}
	totalMs := float64(time.Since(sweepStart).Microseconds()) / 1000.0

	summary := evaluation.Evaluate(rankings, judgments)
	row := Row{
		Label:         r.cfg.Label,
		NumCPUWorkers: r.workers,
		UseReranking:  r.reranking,
		TotalTimeMs:   totalMs,
		PrecisionAt10: summary.PrecisionAt10,
		MAP:           summary.MAP,
		MRR:           summary.MRR,
		NDCGAt10:      summary.NDCGAt10,
	}
	if totalMs > 0 {
		row.ThroughputQPS = float64(len(latencies)) / (totalMs / 1000.0)
	}
	if n := len(latencies); n > 0 {
		row.AvgRetrievalMs = totalRetrievalMs / float64(n)
		row.AvgRerankingMs = totalRerankMs / float64(n)
		row.MedianLatencyMs = percentile(latencies, 0.50)
		row.P95LatencyMs = percentile(latencies, 0.95)
	}

	csvPath := filepath.Join(r.cfg.ResultsDir, ResultsFileName)
	if err := AppendCSV(csvPath, row); err != nil {
		return row, err
	}
	if r.store != nil {
		if err := r.store.Insert(ctx, row); err != nil {
			r.logger.Error("postgres insert failed", "error", err)
		}
	}
	if r.collector != nil {
		r.collector.Record(analytics.BenchmarkEvent{
			Type:          analytics.EventBenchmark,
			Label:         r.cfg.Label,
			NumQueries:    len(latencies),
			ThroughputQPS: row.ThroughputQPS,
			Timestamp:     time.Now().UTC(),
		})
	}

	r.logger.Info("benchmark complete",
		"label", r.cfg.Label,
		"queries", len(latencies),
		"throughput_qps", row.ThroughputQPS,
		"p95_ms", row.P95LatencyMs,
	)
	return row, nil
}

// percentile returns the p-quantile of the latency sample using
// nearest-rank on a sorted copy.
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
