package benchmark

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cascadeir/cascade/internal/bsbi"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestAppendCSVHeaderGating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "all_benchmarks.csv")
	row := Row{Label: "run-a", NumCPUWorkers: 8, UseReranking: true, ThroughputQPS: 12.5}

	if err := AppendCSV(path, row); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if len(records) != 2 {
		t.Fatalf("got %d records after first append, want header + row", len(records))
	}
	if records[0][0] != "label" || records[0][len(records[0])-1] != "p95_latency_ms" {
		t.Errorf("header = %v", records[0])
	}
	if len(records[0]) != 13 {
		t.Errorf("header has %d columns, want 13", len(records[0]))
	}

	// Second append must not repeat the header.
	row.Label = "run-b"
	if err := AppendCSV(path, row); err != nil {
		t.Fatal(err)
	}
	records = readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("got %d records after second append, want 3", len(records))
	}
	if records[1][0] != "run-a" || records[2][0] != "run-b" {
		t.Errorf("rows out of order: %v", records[1:])
	}
	if records[2][2] != "true" {
		t.Errorf("use_reranking column = %q, want true", records[2][2])
	}
}

func TestAppendIndexingCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "indexing_benchmarks.csv")
	timings := []bsbi.PhaseTiming{
		{Name: "generate_runs", Duration: 1500 * time.Millisecond},
		{Name: "merge_runs", Duration: 250 * time.Millisecond},
	}
	if err := AppendIndexingCSV(path, "bench", 8, 64, 256, 1000, timings); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 phases", len(records))
	}
	if records[1][5] != "generate_runs" || records[1][6] != "1500.0000" {
		t.Errorf("phase row = %v", records[1])
	}

	if err := AppendIndexingCSV(path, "bench", 8, 64, 256, 1000, timings[:1]); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 4 {
		t.Errorf("header repeated on second append: %d records", len(records))
	}
}

func TestPercentile(t *testing.T) {
	samples := []float64{5, 1, 4, 2, 3}
	if got := percentile(samples, 0.5); got != 3 {
		t.Errorf("median = %v, want 3", got)
	}
	if got := percentile(samples, 0.95); got != 5 {
		t.Errorf("p95 = %v, want 5", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("empty sample percentile = %v, want 0", got)
	}
}
