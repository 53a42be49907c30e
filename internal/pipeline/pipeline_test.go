package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cascadeir/cascade/internal/bsbi"
	"github.com/cascadeir/cascade/internal/corpus"
	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/queryparse"
	"github.com/cascadeir/cascade/internal/rerank"
	"github.com/cascadeir/cascade/internal/retrieval"
	"github.com/cascadeir/cascade/internal/synonym"
	"github.com/cascadeir/cascade/internal/textnorm"
	"github.com/cascadeir/cascade/pkg/config"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

const testShards = 4

// buildFixture indexes a tiny corpus and returns the engine building blocks.
func buildFixture(t *testing.T, docs map[string]string) (*retrieval.Retriever, *index.DocStore) {
	t.Helper()
	corpusDir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(corpusDir, name+".txt"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stream, err := corpus.New(corpusDir, textnorm.New())
	if err != nil {
		t.Fatal(err)
	}
	indexDir := t.TempDir()
	cfg := config.IndexConfig{Dir: indexDir, NumShards: testShards, NumWorkers: 2, BlockMiB: 1}
	if err := bsbi.New(stream, cfg, nil).Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	retriever, err := retrieval.Open(indexDir, testShards, nil)
	if err != nil {
		t.Fatal(err)
	}
	store, err := index.OpenDocStore(indexDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
		retriever.Close()
	})
	return retriever, store
}

var fixtureDocs = map[string]string{
	"doc0": "the quick brown fox",
	"doc1": "quick brown dog",
	"doc2": "lazy fox",
}

func TestSearchBooleanOnly(t *testing.T) {
	retriever, store := buildFixture(t, fixtureDocs)
	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, nil,
		config.SearchConfig{UseReranking: false}, nil)

	result, err := engine.Search(context.Background(), "quick AND fox")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(result.Candidates) != fmt.Sprint([]uint32{0}) {
		t.Errorf("candidates = %v, want [0]", result.Candidates)
	}
	if len(result.Ranked) != 1 || result.Ranked[0].DocID != 0 || result.Ranked[0].Score != 1.0 {
		t.Errorf("ranked = %v, want doc 0 with uniform score 1.0", result.Ranked)
	}
}

func TestSearchZeroResults(t *testing.T) {
	retriever, store := buildFixture(t, fixtureDocs)
	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, nil,
		config.SearchConfig{UseReranking: false}, nil)

	result, err := engine.Search(context.Background(), "nonexistentterm")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Ranked) != 0 || result.Metrics.NumCandidates != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestSearchMalformed(t *testing.T) {
	retriever, store := buildFixture(t, fixtureDocs)
	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, nil,
		config.SearchConfig{UseReranking: false}, nil)

	_, err := engine.Search(context.Background(), "(quick AND fox")
	if !errors.Is(err, pkgerrors.ErrMalformedQuery) {
		t.Errorf("error = %v, want ErrMalformedQuery", err)
	}
}

// lengthSession scores pairs by attention-mask weight, so longer documents
// rank higher; enough to observe reranking change the order.
type lengthSession struct {
	seqLen int
}

func (s *lengthSession) Run(inputIDs, attentionMask []int64, batch int) ([]float32, error) {
	out := make([]float32, batch)
	for i := 0; i < batch; i++ {
		var weight float32
		for j := 0; j < s.seqLen; j++ {
			weight += float32(attentionMask[i*s.seqLen+j])
		}
		out[i] = weight
	}
	return out, nil
}

func (s *lengthSession) OutputDim() int { return 1 }
func (s *lengthSession) Close() error   { return nil }

// passEncoder marks one mask slot per document byte.
type passEncoder struct{}

func (passEncoder) EncodePair(query, document string, maxLen int) ([]int64, []int64) {
	ids := make([]int64, maxLen)
	mask := make([]int64, maxLen)
	words := len(document)
	if words > maxLen {
		words = maxLen
	}
	for i := 0; i < words; i++ {
		mask[i] = 1
	}
	return ids, mask
}

func TestSearchWithReranking(t *testing.T) {
	retriever, store := buildFixture(t, fixtureDocs)
	rerankCfg := config.RerankConfig{BatchSize: 4, MaxSeqLen: 32, MaxWords: 256, QueueDepth: 8}
	svc := rerank.New(&lengthSession{seqLen: 32}, passEncoder{}, rerankCfg, nil)
	defer svc.Close()

	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, svc,
		config.SearchConfig{UseReranking: true, MaxRerankCandidates: 1024}, nil)

	// "quick OR fox" matches docs 0,1,2; the shortest content ranks last.
	result, err := engine.Search(context.Background(), "quick OR fox")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Ranked) != 3 {
		t.Fatalf("ranked %d docs, want 3", len(result.Ranked))
	}
	// doc0 "quick brown fox" (15 chars) == doc1 "quick brown dog" (15) > doc2 "lazy fox" (8)
	if result.Ranked[2].DocID != 2 {
		t.Errorf("shortest doc should rank last: %v", result.Ranked)
	}
	for i := 1; i < len(result.Ranked); i++ {
		if result.Ranked[i].Score > result.Ranked[i-1].Score {
			t.Errorf("scores not descending: %v", result.Ranked)
		}
	}
	if result.Metrics.RerankMs < 0 {
		t.Errorf("rerank timing missing: %+v", result.Metrics)
	}
}

func TestSearchCandidateCap(t *testing.T) {
	docs := make(map[string]string, 30)
	for i := 0; i < 30; i++ {
		docs[fmt.Sprintf("doc%02d", i)] = "shared term"
	}
	retriever, store := buildFixture(t, docs)
	rerankCfg := config.RerankConfig{BatchSize: 8, MaxSeqLen: 16, MaxWords: 256, QueueDepth: 8}
	svc := rerank.New(&lengthSession{seqLen: 16}, passEncoder{}, rerankCfg, nil)
	defer svc.Close()

	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, svc,
		config.SearchConfig{UseReranking: true, MaxRerankCandidates: 10}, nil)

	result, err := engine.Search(context.Background(), "shared")
	if err != nil {
		t.Fatal(err)
	}
	if result.Metrics.NumCandidates != 30 {
		t.Errorf("candidates = %d, want 30", result.Metrics.NumCandidates)
	}
	if len(result.Ranked) != 10 {
		t.Errorf("ranked = %d docs, want capped 10", len(result.Ranked))
	}
}

func TestRerankUnavailableSurfacesError(t *testing.T) {
	retriever, store := buildFixture(t, fixtureDocs)
	svc := rerank.New(nil, nil, config.RerankConfig{BatchSize: 4, MaxSeqLen: 16, QueueDepth: 8}, nil)
	defer svc.Close()

	engine := New(textnorm.New(), queryparse.New(nil), retriever, store, svc,
		config.SearchConfig{UseReranking: true, MaxRerankCandidates: 1024}, nil)

	_, err := engine.Search(context.Background(), "quick")
	if !errors.Is(err, pkgerrors.ErrRerankUnavailable) {
		t.Errorf("error = %v, want ErrRerankUnavailable", err)
	}
}

func TestSynonymQueryEndToEnd(t *testing.T) {
	retriever, store := buildFixture(t, map[string]string{
		"doc0": "car seat",
		"doc1": "automobile seat",
		"doc2": "vehicle wheel",
	})
	synPath := filepath.Join(t.TempDir(), "synonyms.txt")
	if err := os.WriteFile(synPath, []byte("car: automobile, vehicle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	engine := New(textnorm.New(), queryparse.New(synonym.Load(synPath)), retriever, store, nil,
		config.SearchConfig{UseReranking: false}, nil)

	result, err := engine.Search(context.Background(), "car")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(result.Candidates) != fmt.Sprint([]uint32{0, 1, 2}) {
		t.Errorf("candidates = %v, want [0 1 2]", result.Candidates)
	}
}
