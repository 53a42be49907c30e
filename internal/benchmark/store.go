package benchmark

import (
	"context"
	"fmt"

	"github.com/cascadeir/cascade/pkg/postgres"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS benchmark_results (
	id                BIGSERIAL PRIMARY KEY,
	label             TEXT NOT NULL,
	num_cpu_workers   INT NOT NULL,
	use_reranking     BOOLEAN NOT NULL,
	total_time_ms     DOUBLE PRECISION NOT NULL,
	throughput_qps    DOUBLE PRECISION NOT NULL,
	precision_at_10   DOUBLE PRECISION NOT NULL,
	map               DOUBLE PRECISION NOT NULL,
	mrr               DOUBLE PRECISION NOT NULL,
	ndcg_at_10        DOUBLE PRECISION NOT NULL,
	avg_retrieval_ms  DOUBLE PRECISION NOT NULL,
	avg_reranking_ms  DOUBLE PRECISION NOT NULL,
	median_latency_ms DOUBLE PRECISION NOT NULL,
	p95_latency_ms    DOUBLE PRECISION NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertRowSQL = `
INSERT INTO benchmark_results (
	label, num_cpu_workers, use_reranking, total_time_ms, throughput_qps,
	precision_at_10, map, mrr, ndcg_at_10, avg_retrieval_ms, avg_reranking_ms,
	median_latency_ms, p95_latency_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Store persists benchmark rows to Postgres alongside the CSV, so sweeps can
// be queried across machines and labels.
type Store struct {
	client *postgres.Client
}

// NewStore ensures the results table exists.
func NewStore(ctx context.Context, client *postgres.Client) (*Store, error) {
	if _, err := client.DB.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("creating benchmark_results table: %w", err)
	}
	return &Store{client: client}, nil
}

// Insert writes one benchmark row.
func (s *Store) Insert(ctx context.Context, row Row) error {
	_, err := s.client.DB.ExecContext(ctx, insertRowSQL,
		row.Label, row.NumCPUWorkers, row.UseReranking, row.TotalTimeMs,
		row.ThroughputQPS, row.PrecisionAt10, row.MAP, row.MRR, row.NDCGAt10,
		row.AvgRetrievalMs, row.AvgRerankingMs, row.MedianLatencyMs, row.P95LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("inserting benchmark row: %w", err)
	}
	return nil
}
