package bsbi

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cascadeir/cascade/internal/model"
)

// generateRuns is phase 1. The doc-id range is split into contiguous chunks,
// one per worker; each worker tokenises its documents into an in-memory
// buffer and spills a sorted run file whenever the buffer's estimated byte
// size crosses the block threshold. Peak memory is workers * block size,
// independent of corpus size.
func (ix *Indexer) generateRuns(ctx context.Context) ([]string, error) {
	numDocs := ix.stream.Len()
	numWorkers := ix.cfg.NumWorkers
	if numWorkers > numDocs {
		numWorkers = numDocs
	}
	docsPerWorker := (numDocs + numWorkers - 1) / numWorkers

	var mu sync.Mutex
	var runFiles []string

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < numWorkers; w++ {
		workerID := w
		g.Go(func() error {
			start := workerID * docsPerWorker
			end := start + docsPerWorker
			if end > numDocs {
				end = numDocs
			}

			var buffer []model.TermDocPair
			bufferBytes := 0
			blockNum := 0

			spill := func() error {
				path := filepath.Join(ix.tempDir, fmt.Sprintf("run_w%d_b%d.dat", workerID, blockNum))
				blockNum++
				if err := writeSortedRun(path, buffer); err != nil {
					return err
				}
				mu.Lock()
				runFiles = append(runFiles, path)
				mu.Unlock()
				if ix.metrics != nil {
					ix.metrics.RunFilesWritten.Inc()
				}
				buffer = buffer[:0]
				bufferBytes = 0
				return nil
			}

			for id := start; id < end; id++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				content, err := ix.stream.ReadDocument(uint32(id))
				if err != nil {
					return err
				}
				for _, term := range strings.Fields(content) {
					buffer = append(buffer, model.TermDocPair{Term: term, DocID: uint32(id)})
					bufferBytes += len(term) + 1 + 4
				}
				if bufferBytes >= ix.cfg.BlockBytes() {
					if err := spill(); err != nil {
						return err
					}
				}
			}
			if len(buffer) > 0 {
				if err := spill(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic merge pairing regardless of worker completion order.
	sort.Strings(runFiles)
	return runFiles, nil
}

func writeSortedRun(path string, buffer []model.TermDocPair) error {
	sort.Slice(buffer, func(i, j int) bool { return buffer[i].Less(buffer[j]) })
	w, err := newRunWriter(path)
	if err != nil {
		return err
	}
	for _, pair := range buffer {
		if err := w.write(pair); err != nil {
			w.close()
			return fmt.Errorf("writing run %s: %w", path, err)
		}
	}
	return w.close()
}
