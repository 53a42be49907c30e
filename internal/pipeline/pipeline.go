// Package pipeline glues normalisation, parsing, retrieval, hydration, and
// reranking into the query path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/internal/queryparse"
	"github.com/cascadeir/cascade/internal/rerank"
	"github.com/cascadeir/cascade/internal/retrieval"
	"github.com/cascadeir/cascade/internal/textnorm"
	"github.com/cascadeir/cascade/pkg/config"
	"github.com/cascadeir/cascade/pkg/metrics"
)

// Result is one executed query: the Boolean candidates, the final ranking,
// and per-stage timing.
type Result struct {
	Candidates model.ResultSet
	Ranked     []model.SearchResult
	Metrics    model.QueryMetrics
}

// Engine is the query-time facade. It is safe for concurrent Search calls;
// the retriever and document store are read-only and the rerank service
// serialises its own work.
type Engine struct {
	norm      *textnorm.Normalizer
	parser    *queryparse.Parser
	retriever *retrieval.Retriever
	store     *index.DocStore
	reranker  *rerank.Service
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires the query pipeline. reranker may be nil when reranking is
// disabled; metrics may be nil.
func New(
	norm *textnorm.Normalizer,
	parser *queryparse.Parser,
	retriever *retrieval.Retriever,
	store *index.DocStore,
	reranker *rerank.Service,
	cfg config.SearchConfig,
	m *metrics.Metrics,
) *Engine {
	return &Engine{
		norm:      norm,
		parser:    parser,
		retriever: retriever,
		store:     store,
		reranker:  reranker,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "query-pipeline"),
	}
}

// Parse normalises and parses a raw topic without executing it. Useful for
// echoing the tree in the REPL.
func (e *Engine) Parse(topic string) (*model.QueryNode, error) {
	return e.parser.Parse(e.norm.Normalize(topic))
}

// Search executes one topic end to end and returns the ranked results. With
// reranking disabled (or no reranker wired), candidates keep their ascending
// doc-id order with a uniform score of 1.0.
func (e *Engine) Search(ctx context.Context, topic string) (*Result, error) {
	tree, err := e.Parse(topic)
	if err != nil {
		e.countQuery("malformed")
		return nil, err
	}

	retrievalStart := time.Now()
	candidates, err := e.retriever.Execute(ctx, tree)
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	retrievalMs := float64(time.Since(retrievalStart).Microseconds()) / 1000.0
	if e.metrics != nil {
		e.metrics.QueryLatency.WithLabelValues("retrieval").Observe(time.Since(retrievalStart).Seconds())
		e.metrics.CandidateSetSize.Observe(float64(len(candidates)))
	}

	result := &Result{
		Candidates: candidates,
		Metrics: model.QueryMetrics{
			NumCandidates: len(candidates),
			RetrievalMs:   retrievalMs,
		},
	}
	if len(candidates) == 0 {
		e.countQuery("zero_result")
		result.Ranked = []model.SearchResult{}
		return result, nil
	}

	if !e.cfg.UseReranking || e.reranker == nil {
		result.Ranked = uniformRanking(candidates)
		e.countQuery("ok")
		return result, nil
	}

	// The cap is a deterministic truncation of the ascending id order, not a
	// relevance cut.
	capped := candidates
	if e.cfg.MaxRerankCandidates > 0 && len(capped) > e.cfg.MaxRerankCandidates {
		capped = capped[:e.cfg.MaxRerankCandidates]
	}

	docs := make([]model.Document, 0, len(capped))
	for _, id := range capped {
		content, err := e.store.Content(id)
		if err != nil {
			e.countQuery("error")
			return nil, fmt.Errorf("hydrating candidate %d: %w", id, err)
		}
		docs = append(docs, model.Document{ID: id, Content: content})
	}

	rerankStart := time.Now()
	ranked, err := e.reranker.Submit(topic, docs).Get()
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	result.Metrics.RerankMs = float64(time.Since(rerankStart).Microseconds()) / 1000.0
	if e.metrics != nil {
		e.metrics.QueryLatency.WithLabelValues("rerank").Observe(time.Since(rerankStart).Seconds())
	}

	result.Ranked = ranked
	e.countQuery("ok")
	return result, nil
}

// NameIndex exposes the document store's name → id map for qrels resolution.
func (e *Engine) NameIndex() map[string]uint32 {
	return e.store.NameToID()
}

// DocName resolves a doc id to its external name for display.
func (e *Engine) DocName(id uint32) string {
	if name, ok := e.store.Name(id); ok {
		return name
	}
	return fmt.Sprintf("doc-%d", id)
}

func uniformRanking(candidates model.ResultSet) []model.SearchResult {
	out := make([]model.SearchResult, len(candidates))
	for i, id := range candidates {
		out[i] = model.SearchResult{DocID: id, Score: 1.0}
	}
	return out
}

func (e *Engine) countQuery(outcome string) {
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	}
}
