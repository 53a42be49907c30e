package bsbi

import (
	"fmt"
	"io"

	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/model"
)

// emitShards is phase 3: stream the merged run once, accumulate the posting
// list for the current term, and on each term change route the finished list
// to shard hash(term) mod N. Postings arrive sorted by (term, doc_id), so the
// per-term list is ascending; adjacent duplicates are dropped.
func (ix *Indexer) emitShards(finalRun string) error {
	writers := make([]*index.ShardWriter, ix.cfg.NumShards)
	for k := range writers {
		w, err := index.NewShardWriter(ix.cfg.Dir, k)
		if err != nil {
			closeAll(writers[:k])
			return err
		}
		writers[k] = w
	}

	if finalRun == "" {
		for k, w := range writers {
			if err := w.Close(); err != nil {
				return fmt.Errorf("closing shard %d: %w", k, err)
			}
		}
		return nil
	}

	in, err := openRun(finalRun)
	if err != nil {
		closeAll(writers)
		return err
	}
	defer in.close()

	flush := func(term string, postings model.ResultSet) error {
		shard := index.ShardForTerm(term, ix.cfg.NumShards)
		if err := writers[shard].Append(term, postings); err != nil {
			return err
		}
		if ix.metrics != nil {
			ix.metrics.TermsEmittedTotal.Inc()
		}
		return nil
	}

	var currentTerm string
	var postings model.ResultSet
	for {
		pair, err := in.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			closeAll(writers)
			return err
		}
		if pair.Term != currentTerm {
			if currentTerm != "" {
				if err := flush(currentTerm, postings); err != nil {
					closeAll(writers)
					return err
				}
			}
			currentTerm = pair.Term
			postings = postings[:0]
		}
		if len(postings) == 0 || postings[len(postings)-1] != pair.DocID {
			postings = append(postings, pair.DocID)
		}
	}
	if currentTerm != "" {
		if err := flush(currentTerm, postings); err != nil {
			closeAll(writers)
			return err
		}
	}

	for k, w := range writers {
		if err := w.Close(); err != nil {
			return fmt.Errorf("closing shard %d: %w", k, err)
		}
	}
	return nil
}

func closeAll(writers []*index.ShardWriter) {
	for _, w := range writers {
		if w != nil {
			w.Close()
		}
	}
}
