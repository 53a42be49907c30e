package benchmark

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cascadeir/cascade/internal/bsbi"
)

// IndexingResultsFileName is the CSV populated by the benchmark-indexing
// command.
const IndexingResultsFileName = "indexing_benchmarks.csv"

var indexingHeader = []string{
	"label",
	"num_cpu_workers",
	"num_shards",
	"block_mib",
	"num_docs",
	"phase",
	"duration_ms",
}

// AppendIndexingCSV appends one row per build phase, emitting the header only
// when the file does not exist yet.
func AppendIndexingCSV(path, label string, workers, shards, blockMiB, numDocs int, timings []bsbi.PhaseTiming) error {
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
		if err := w.Write(indexingHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, t := range timings {
		record := []string{
			label,
			strconv.Itoa(workers),
			strconv.Itoa(shards),
			strconv.Itoa(blockMiB),
			strconv.Itoa(numDocs),
			t.Name,
			formatFloat(float64(t.Duration.Microseconds()) / 1000.0),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
