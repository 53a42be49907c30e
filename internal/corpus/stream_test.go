package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cascadeir/cascade/internal/textnorm"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestEnumerationOrderAndIDs(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"charlie.txt": "c",
		"alpha.txt":   "a",
		"bravo.txt":   "b",
	})
	stream, err := New(dir, textnorm.New())
	if err != nil {
		t.Fatal(err)
	}
	if stream.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", stream.Len())
	}
	wantOrder := []string{"alpha", "bravo", "charlie"}
	for i, doc := range stream.Docs() {
		if doc.Name != wantOrder[i] {
			t.Errorf("doc %d name = %q, want %q", i, doc.Name, wantOrder[i])
		}
		if doc.DocID != uint32(i) {
			t.Errorf("doc %q id = %d, want %d", doc.Name, doc.DocID, i)
		}
	}

	nameToID := stream.NameToID()
	if nameToID["bravo"] != 1 {
		t.Errorf("NameToID[bravo] = %d, want 1", nameToID["bravo"])
	}
}

func TestReadDocumentNormalizes(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"doc.txt": "The Quick, Brown FOX!",
	})
	stream, err := New(dir, textnorm.New())
	if err != nil {
		t.Fatal(err)
	}
	content, err := stream.ReadDocument(0)
	if err != nil {
		t.Fatal(err)
	}
	if content != "quick brown fox" {
		t.Errorf("ReadDocument = %q, want %q", content, "quick brown fox")
	}
}

func TestMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), textnorm.New())
	if !errors.Is(err, pkgerrors.ErrCorpusUnreadable) {
		t.Errorf("missing directory should be ErrCorpusUnreadable, got %v", err)
	}
}

func TestEmptyDirectory(t *testing.T) {
	_, err := New(t.TempDir(), textnorm.New())
	if !errors.Is(err, pkgerrors.ErrCorpusUnreadable) {
		t.Errorf("empty directory should be ErrCorpusUnreadable, got %v", err)
	}
}

func TestReadDocumentOutOfRange(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.txt": "x"})
	stream, err := New(dir, textnorm.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.ReadDocument(7); err == nil {
		t.Error("out-of-range id should fail")
	}
}
