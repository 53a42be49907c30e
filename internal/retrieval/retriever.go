// Package retrieval loads the sharded index and evaluates Boolean query
// trees. Posting lists are fetched in parallel before the tree walk; NOT is
// evaluated against the enclosing And context, or against the union of all
// fetched postings when no context exists.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/pkg/metrics"
)

type shardHandle struct {
	dict     map[string]index.PostingRef
	postings *index.PostingsReader
}

// Retriever holds the loaded shard dictionaries and open postings maps. It is
// read-only after Open and safe for concurrent queries.
type Retriever struct {
	shards  []shardHandle
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Open loads every shard's dictionary and maps its postings file. Any missing
// shard file is a fatal initialization error. metrics may be nil.
func Open(root string, numShards int, m *metrics.Metrics) (*Retriever, error) {
	r := &Retriever{
		shards:  make([]shardHandle, numShards),
		metrics: m,
		logger:  slog.Default().With("component", "retriever"),
	}
	for k := 0; k < numShards; k++ {
		dict, err := index.ReadDict(root, k)
		if err != nil {
			r.Close()
			return nil, err
		}
		postings, err := index.OpenPostings(root, k)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.shards[k] = shardHandle{dict: dict, postings: postings}
		if m != nil {
			m.ShardDictionarySize.WithLabelValues(fmt.Sprintf("%d", k)).Set(float64(len(dict)))
		}
	}
	r.logger.Info("index loaded", "shards", numShards)
	return r, nil
}

// Close unmaps all shard postings files.
func (r *Retriever) Close() error {
	var firstErr error
	for i := range r.shards {
		if r.shards[i].postings != nil {
			if err := r.shards[i].postings.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			r.shards[i].postings = nil
		}
	}
	return firstErr
}

// fetchTask is one unit of parallel work: one term's posting list read from
// one shard.
type fetchTask struct {
	term  string
	shard int
	ref   index.PostingRef
}

// Execute evaluates a query tree and returns the matching doc ids. Terms
// absent from every shard dictionary evaluate to the empty set; read errors
// surface as index corruption and abort the query.
func (r *Retriever) Execute(ctx context.Context, tree *model.QueryNode) (model.ResultSet, error) {
	if tree == nil {
		return model.ResultSet{}, nil
	}

	var tasks []fetchTask
	for _, term := range tree.Terms() {
		shard := index.ShardForTerm(term, len(r.shards))
		if ref, ok := r.shards[shard].dict[term]; ok {
			tasks = append(tasks, fetchTask{term: term, shard: shard, ref: ref})
		}
	}
	if r.metrics != nil {
		r.metrics.PostingsFetched.Observe(float64(len(tasks)))
	}

	cache := make(map[string]model.ResultSet, len(tasks))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			postings, err := r.shards[task.shard].postings.Read(task.ref)
			if err != nil {
				return err
			}
			mu.Lock()
			cache[task.term] = postings
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ev := &evaluator{cache: cache}
	return ev.eval(tree), nil
}

// evaluator walks a query tree over a filled postings cache. The universe for
// context-free NOT is the union of every fetched posting list, computed once
// on first use.
type evaluator struct {
	cache        map[string]model.ResultSet
	universe     model.ResultSet
	universeOnce bool
}

func (e *evaluator) getUniverse() model.ResultSet {
	if !e.universeOnce {
		u := model.ResultSet{}
		for _, postings := range e.cache {
			u = model.Union(u, postings)
		}
		e.universe = u
		e.universeOnce = true
	}
	return e.universe
}

func (e *evaluator) eval(node *model.QueryNode) model.ResultSet {
	switch node.Op {
	case model.OpTerm:
		if postings, ok := e.cache[node.Term]; ok {
			return postings
		}
		return model.ResultSet{}

	case model.OpOr:
		result := model.ResultSet{}
		for _, child := range node.Children {
			result = model.Union(result, e.eval(child))
		}
		return result

	case model.OpAnd:
		if len(node.Children) == 0 {
			return model.ResultSet{}
		}
		var result model.ResultSet
		started := false
		for _, child := range node.Children {
			if child.Op == model.OpNot {
				// a AND NOT b keeps the a's that are not b's. A Not with no
				// accumulated context subtracts from the synthesized universe.
				base := result
				if !started {
					base = e.getUniverse()
					started = true
				}
				result = model.Difference(base, e.eval(child.Children[0]))
				continue
			}
			if !started {
				result = e.eval(child)
				started = true
				continue
			}
			result = model.Intersect(result, e.eval(child))
		}
		return result

	case model.OpNot:
		return model.Difference(e.getUniverse(), e.eval(node.Children[0]))
	}
	return model.ResultSet{}
}
