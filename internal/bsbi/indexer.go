// Package bsbi builds the sharded on-disk index with blocked sort-based
// indexing: parallel sorted-run generation, parallel pairwise merging, and
// hash-partitioned shard emission, followed by the document store.
package bsbi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cascadeir/cascade/internal/corpus"
	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/pkg/config"
	"github.com/cascadeir/cascade/pkg/metrics"
)

// Indexer orchestrates the four build phases. A failed build leaves the temp
// directory in place for diagnosis; a successful one removes it.
type Indexer struct {
	stream  *corpus.Stream
	cfg     config.IndexConfig
	tempDir string
	monitor *Monitor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Indexer over an enumerated corpus. metrics may be nil.
func New(stream *corpus.Stream, cfg config.IndexConfig, m *metrics.Metrics) *Indexer {
	return &Indexer{
		stream:  stream,
		cfg:     cfg,
		tempDir: filepath.Join(cfg.Dir, index.TempDirName),
		monitor: NewMonitor(),
		metrics: m,
		logger:  slog.Default().With("component", "bsbi-indexer"),
	}
}

// Monitor returns the phase timings collected during Build.
func (ix *Indexer) Monitor() *Monitor {
	return ix.monitor
}

// Build runs all four phases. The index directory is invalid if Build returns
// an error; rebuilds start from scratch.
func (ix *Indexer) Build(ctx context.Context) error {
	if err := os.MkdirAll(ix.tempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	ix.logger.Info("starting index build",
		"documents", ix.stream.Len(),
		"shards", ix.cfg.NumShards,
		"workers", ix.cfg.NumWorkers,
		"block_mib", ix.cfg.BlockMiB,
	)

	ix.monitor.Start("total")

	ix.monitor.Start("generate_runs")
	runs, err := ix.generateRuns(ctx)
	if err != nil {
		return fmt.Errorf("generating runs: %w", err)
	}
	ix.monitor.End("generate_runs")
	ix.logger.Info("run generation complete", "run_files", len(runs))

	ix.monitor.Start("merge_runs")
	finalRun, err := ix.mergeRuns(ctx, runs)
	if err != nil {
		return fmt.Errorf("merging runs: %w", err)
	}
	ix.monitor.End("merge_runs")

	ix.monitor.Start("emit_shards")
	if err := ix.emitShards(finalRun); err != nil {
		return fmt.Errorf("emitting shards: %w", err)
	}
	ix.monitor.End("emit_shards")

	ix.monitor.Start("document_store")
	if err := ix.writeDocumentStore(); err != nil {
		return fmt.Errorf("writing document store: %w", err)
	}
	ix.monitor.End("document_store")

	ix.monitor.End("total")
	ix.monitor.LogSummary(ix.logger)

	if err := os.RemoveAll(ix.tempDir); err != nil {
		ix.logger.Warn("could not remove temp directory", "dir", ix.tempDir, "error", err)
	}
	return nil
}

// writeDocumentStore is phase 4: one record per doc id, in order, in each of
// the three store files.
func (ix *Indexer) writeDocumentStore() error {
	w, err := index.NewDocStoreWriter(ix.cfg.Dir)
	if err != nil {
		return err
	}
	for _, doc := range ix.stream.Docs() {
		content, err := ix.stream.ReadDocument(doc.DocID)
		if err != nil {
			w.Close()
			return fmt.Errorf("reading document %d: %w", doc.DocID, err)
		}
		if err := w.Append(doc.DocID, doc.Name, content); err != nil {
			w.Close()
			return err
		}
		if ix.metrics != nil {
			ix.metrics.DocsIndexedTotal.Inc()
		}
	}
	return w.Close()
}
