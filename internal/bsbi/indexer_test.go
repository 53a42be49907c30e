package bsbi

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cascadeir/cascade/internal/corpus"
	"github.com/cascadeir/cascade/internal/index"
	"github.com/cascadeir/cascade/internal/textnorm"
	"github.com/cascadeir/cascade/pkg/config"
)

func buildTestIndex(t *testing.T, docs map[string]string, numShards, numWorkers int) string {
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
	cfg := config.IndexConfig{
		Dir:        indexDir,
		NumShards:  numShards,
		NumWorkers: numWorkers,
		BlockMiB:   1,
	}
	if err := New(stream, cfg, nil).Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return indexDir
}

var tinyCorpus = map[string]string{
	"doc0": "the quick brown fox",
	"doc1": "quick brown dog",
	"doc2": "lazy fox",
}

func loadAllShards(t *testing.T, indexDir string, numShards int) map[string][]uint32 {
	t.Helper()
	all := make(map[string][]uint32)
	for k := 0; k < numShards; k++ {
		dict, err := index.ReadDict(indexDir, k)
		if err != nil {
			t.Fatal(err)
		}
		postings, err := index.OpenPostings(indexDir, k)
		if err != nil {
			t.Fatal(err)
		}
		for term, ref := range dict {
			if _, dup := all[term]; dup {
				t.Errorf("term %q appears in more than one shard", term)
			}
			if want := index.ShardForTerm(term, numShards); want != k {
				t.Errorf("term %q in shard %d, want %d", term, k, want)
			}
			list, err := postings.Read(ref)
			if err != nil {
				t.Fatalf("reading postings for %q: %v", term, err)
			}
			all[term] = list
		}
		postings.Close()
	}
	return all
}

func TestBuildTinyCorpus(t *testing.T) {
	indexDir := buildTestIndex(t, tinyCorpus, 4, 2)
	all := loadAllShards(t, indexDir, 4)

	want := map[string][]uint32{
		"quick": {0, 1},
		"brown": {0, 1},
		"fox":   {0, 2},
		"dog":   {1},
		"lazy":  {2},
	}
	if len(all) != len(want) {
		t.Errorf("got terms %v, want %v", all, want)
	}
	for term, wantList := range want {
		gotList, ok := all[term]
		if !ok {
			t.Errorf("term %q missing from index", term)
			continue
		}
		if fmt.Sprint(gotList) != fmt.Sprint(wantList) {
			t.Errorf("postings[%q] = %v, want %v", term, gotList, wantList)
		}
	}
	// "the" is a stop-word and must not be indexed.
	if _, ok := all["the"]; ok {
		t.Error(`stop-word "the" leaked into the index`)
	}

	for term, list := range all {
		for i := 1; i < len(list); i++ {
			if list[i] <= list[i-1] {
				t.Errorf("postings[%q] not strictly ascending: %v", term, list)
			}
		}
	}
}

func TestBuildWritesDocumentStore(t *testing.T) {
	indexDir := buildTestIndex(t, tinyCorpus, 2, 1)
	store, err := index.OpenDocStore(indexDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if store.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", store.Count())
	}
	content, err := store.Content(0)
	if err != nil {
		t.Fatal(err)
	}
	if content != "quick brown fox" {
		t.Errorf("Content(0) = %q, want %q", content, "quick brown fox")
	}
	name, _ := store.Name(2)
	if name != "doc2" {
		t.Errorf("Name(2) = %q, want doc2", name)
	}
}

func TestBuildRemovesTempDir(t *testing.T) {
	indexDir := buildTestIndex(t, tinyCorpus, 2, 2)
	if _, err := os.Stat(filepath.Join(indexDir, index.TempDirName)); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after a successful build")
	}
}

// Two builds over the same corpus with the same shard count must produce
// byte-identical shard files.
func TestBuildDeterminism(t *testing.T) {
	docs := make(map[string]string)
	for i := 0; i < 40; i++ {
		docs[fmt.Sprintf("doc%02d", i)] = fmt.Sprintf(
			"term%d shared common word%d filler text number %d", i%7, i%3, i)
	}
	first := buildTestIndex(t, docs, 8, 4)
	second := buildTestIndex(t, docs, 8, 4)

	for k := 0; k < 8; k++ {
		for _, name := range []string{index.DictFileName, index.PostingsFileName} {
			a, err := os.ReadFile(filepath.Join(index.ShardDir(first, k), name))
			if err != nil {
				t.Fatal(err)
			}
			b, err := os.ReadFile(filepath.Join(index.ShardDir(second, k), name))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(a, b) {
				t.Errorf("shard %d %s differs between identical builds", k, name)
			}
		}
	}
}

func TestBuildMoreWorkersThanDocs(t *testing.T) {
	indexDir := buildTestIndex(t, tinyCorpus, 2, 16)
	all := loadAllShards(t, indexDir, 2)
	if len(all) == 0 {
		t.Error("index empty despite documents present")
	}
}
