package benchmark

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// csvHeader is the stable column set of results/all_benchmarks.csv. Rows are
// appended; the header is written only when the file does not exist yet.
var csvHeader = []string{
	"label",
	"num_cpu_workers",
	"use_reranking",
	"query_processing_time_ms",
	"throughput_qps",
	"precision_at_10",
	"map",
	"mrr",
	"ndcg_at_10",
	"avg_retrieval_ms",
	"avg_reranking_ms",
	"median_latency_ms",
	"p95_latency_ms",
}

// Row is one benchmark sweep summarised for the CSV and the optional
// Postgres store.
type Row struct {
	Label           string
	NumCPUWorkers   int
	UseReranking    bool
	TotalTimeMs     float64
	ThroughputQPS   float64
	PrecisionAt10   float64
	MAP             float64
	MRR             float64
	NDCGAt10        float64
	AvgRetrievalMs  float64
	AvgRerankingMs  float64
	MedianLatencyMs float64
	P95LatencyMs    float64
}

// AppendCSV appends one row to path, creating the directory and emitting the
// header when the file does not exist.
func AppendCSV(path string, row Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	record := []string{
		row.Label,
		strconv.Itoa(row.NumCPUWorkers),
		strconv.FormatBool(row.UseReranking),
		formatFloat(row.TotalTimeMs),
		formatFloat(row.ThroughputQPS),
		formatFloat(row.PrecisionAt10),
		formatFloat(row.MAP),
		formatFloat(row.MRR),
		formatFloat(row.NDCGAt10),
		formatFloat(row.AvgRetrievalMs),
		formatFloat(row.AvgRerankingMs),
		formatFloat(row.MedianLatencyMs),
		formatFloat(row.P95LatencyMs),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
