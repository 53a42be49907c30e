// Package corpus enumerates the document collection and serves normalised
// document content on demand through read-only memory maps.
package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/cascadeir/cascade/internal/textnorm"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

// DocInfo describes one enumerated corpus file. DocID is the dense index
// assigned in enumeration order.
type DocInfo struct {
	DocID uint32
	Name  string
	Path  string
	Size  int64
}

// Stream lists the corpus once and reads documents lazily. Content is mapped,
// copied, and normalised per call; the mapping does not outlive ReadDocument.
type Stream struct {
	docs   []DocInfo
	norm   *textnorm.Normalizer
	logger *slog.Logger
}

// New enumerates regular files directly under dir in deterministic name order
// and assigns doc ids in that order. A missing directory or an empty listing
// is ErrCorpusUnreadable.
func New(dir string, norm *textnorm.Normalizer) (*Stream, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrCorpusUnreadable, pkgerrors.ExitMissingInput,
			"listing corpus directory %s: %v", dir, err)
	}

	var docs []DocInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		docs = append(docs, DocInfo{
			Name: name,
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		})
	}
	if len(docs) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrCorpusUnreadable, pkgerrors.ExitMissingInput,
			"no regular files under %s", dir)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	for i := range docs {
		docs[i].DocID = uint32(i)
	}

	logger := slog.Default().With("component", "corpus-stream")
	logger.Info("corpus enumerated", "dir", dir, "documents", len(docs))
	return &Stream{docs: docs, norm: norm, logger: logger}, nil
}

// Len returns the number of enumerated documents.
func (s *Stream) Len() int {
	return len(s.docs)
}

// Docs returns the enumerated document metadata, ordered by doc id.
func (s *Stream) Docs() []DocInfo {
	return s.docs
}

// NameToID returns the doc_name → internal id map consumed by evaluation.
func (s *Stream) NameToID() map[string]uint32 {
	m := make(map[string]uint32, len(s.docs))
	for _, d := range s.docs {
		m[d.Name] = d.DocID
	}
	return m
}

// ReadDocument maps the file for id read-only, copies its bytes, and returns
// the normalised content.
func (s *Stream) ReadDocument(id uint32) (string, error) {
	if int(id) >= len(s.docs) {
		return "", fmt.Errorf("doc id %d out of range [0, %d)", id, len(s.docs))
	}
	doc := s.docs[id]
	reader, err := mmap.Open(doc.Path)
	if err != nil {
		return "", fmt.Errorf("mapping %s: %w", doc.Path, err)
	}
	defer reader.Close()

	buf := make([]byte, reader.Len())
	if reader.Len() > 0 {
		if _, err := reader.ReadAt(buf, 0); err != nil {
			return "", fmt.Errorf("reading %s: %w", doc.Path, err)
		}
	}
	return s.norm.Normalize(string(buf)), nil
}
