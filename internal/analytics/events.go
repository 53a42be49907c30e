// Package analytics publishes query events to Kafka asynchronously. Nothing
// in the query path blocks on the broker; events drop when the buffer fills.
package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventBenchmark  EventType = "benchmark_run"
)

// QueryEvent records one executed query for offline analysis.
type QueryEvent struct {
	Type          EventType `json:"type"`
	QueryID       string    `json:"query_id,omitempty"`
	Query         string    `json:"query"`
	NumCandidates int       `json:"num_candidates"`
	NumRanked     int       `json:"num_ranked"`
	RetrievalMs   float64   `json:"retrieval_ms"`
	RerankMs      float64   `json:"rerank_ms"`
	UsedReranking bool      `json:"used_reranking"`
	Timestamp     time.Time `json:"timestamp"`
}

// BenchmarkEvent records one completed benchmark sweep.
type BenchmarkEvent struct {
	Type          EventType `json:"type"`
	Label         string    `json:"label"`
	NumQueries    int       `json:"num_queries"`
	ThroughputQPS float64   `json:"throughput_qps"`
	Timestamp     time.Time `json:"timestamp"`
}
