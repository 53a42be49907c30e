package bsbi

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// mergeRuns is phase 2: repeatedly pair adjacent run files and two-way merge
// each pair in parallel until one file remains. An unpaired odd file carries
// forward untouched, so the pass count is ceil(log2(initial runs)).
func (ix *Indexer) mergeRuns(ctx context.Context, runs []string) (string, error) {
	if len(runs) == 0 {
		// Every document normalised to nothing; the shards come out empty.
		return "", nil
	}
	pass := 0
	for len(runs) > 1 {
		if ix.metrics != nil {
			ix.metrics.MergePassesTotal.Inc()
		}

		var mu sync.Mutex
		next := make([]string, 0, (len(runs)+1)/2)

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i+1 < len(runs); i += 2 {
			left, right := runs[i], runs[i+1]
			outPath := filepath.Join(ix.tempDir, fmt.Sprintf("merge_p%d_%d.dat", pass, i/2))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := mergePair(left, right, outPath); err != nil {
					return err
				}
				mu.Lock()
				next = append(next, outPath)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		if len(runs)%2 == 1 {
			next = append(next, runs[len(runs)-1])
		}

		ix.logger.Debug("merge pass complete", "pass", pass, "inputs", len(runs), "outputs", len(next))
		runs = next
		pass++
	}
	return runs[0], nil
}

// mergePair streams a two-pointer merge of two sorted run files and removes
// the inputs on success.
func mergePair(leftPath, rightPath, outPath string) error {
	left, err := openRun(leftPath)
	if err != nil {
		return err
	}
	defer left.close()
	right, err := openRun(rightPath)
	if err != nil {
		return err
	}
	defer right.close()

	out, err := newRunWriter(outPath)
	if err != nil {
		return err
	}

	lp, lerr := left.next()
	rp, rerr := right.next()
	for lerr == nil && rerr == nil {
		if lp.Less(rp) {
			if err := out.write(lp); err != nil {
				out.close()
				return err
			}
			lp, lerr = left.next()
		} else {
			if err := out.write(rp); err != nil {
				out.close()
				return err
			}
			rp, rerr = right.next()
		}
	}
	for lerr == nil {
		if err := out.write(lp); err != nil {
			out.close()
			return err
		}
		lp, lerr = left.next()
	}
	for rerr == nil {
		if err := out.write(rp); err != nil {
			out.close()
			return err
		}
		rp, rerr = right.next()
	}
	if lerr != io.EOF {
		out.close()
		return lerr
	}
	if rerr != io.EOF {
		out.close()
		return rerr
	}
	if err := out.close(); err != nil {
		return err
	}

	os.Remove(leftPath)
	os.Remove(rightPath)
	return nil
}
