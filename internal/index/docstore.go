package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

// DocStoreWriter emits the three document-store files in doc-id order:
// documents.dat {id:u32, len:u32, bytes}, doc_offsets.dat {id:u32, offset:u64},
// and doc_names.dat {id:u32, name_len:u32, name}.
type DocStoreWriter struct {
	docsFile    *os.File
	offsetsFile *os.File
	namesFile   *os.File
	docs        *bufio.Writer
	offsets     *bufio.Writer
	names       *bufio.Writer
	offset      uint64
	count       uint32
}

// NewDocStoreWriter creates the three files under the index root.
func NewDocStoreWriter(root string) (*DocStoreWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", root, err)
	}
	w := &DocStoreWriter{}
	var err error
	if w.docsFile, err = os.Create(filepath.Join(root, DocumentsFile)); err != nil {
		return nil, fmt.Errorf("creating %s: %w", DocumentsFile, err)
	}
	if w.offsetsFile, err = os.Create(filepath.Join(root, DocOffsetsFile)); err != nil {
		w.docsFile.Close()
		return nil, fmt.Errorf("creating %s: %w", DocOffsetsFile, err)
	}
	if w.namesFile, err = os.Create(filepath.Join(root, DocNamesFile)); err != nil {
		w.docsFile.Close()
		w.offsetsFile.Close()
		return nil, fmt.Errorf("creating %s: %w", DocNamesFile, err)
	}
	w.docs = bufio.NewWriter(w.docsFile)
	w.offsets = bufio.NewWriter(w.offsetsFile)
	w.names = bufio.NewWriter(w.namesFile)
	return w, nil
}

// Append writes one document's record into all three files. Ids must arrive
// dense and in order starting from zero.
func (w *DocStoreWriter) Append(id uint32, name string, content string) error {
	if id != w.count {
		return fmt.Errorf("doc ids must be appended in order: got %d, want %d", id, w.count)
	}
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], id)
	if _, err := w.docs.Write(u32[:]); err != nil {
		return fmt.Errorf("writing document id %d: %w", id, err)
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(len(content)))
	if _, err := w.docs.Write(u32[:]); err != nil {
		return fmt.Errorf("writing content length for %d: %w", id, err)
	}
	if _, err := w.docs.WriteString(content); err != nil {
		return fmt.Errorf("writing content for %d: %w", id, err)
	}

	binary.LittleEndian.PutUint32(u32[:], id)
	if _, err := w.offsets.Write(u32[:]); err != nil {
		return fmt.Errorf("writing offset id %d: %w", id, err)
	}
	binary.LittleEndian.PutUint64(u64[:], w.offset)
	if _, err := w.offsets.Write(u64[:]); err != nil {
		return fmt.Errorf("writing offset for %d: %w", id, err)
	}

	binary.LittleEndian.PutUint32(u32[:], id)
	if _, err := w.names.Write(u32[:]); err != nil {
		return fmt.Errorf("writing name id %d: %w", id, err)
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(len(name)))
	if _, err := w.names.Write(u32[:]); err != nil {
		return fmt.Errorf("writing name length for %d: %w", id, err)
	}
	if _, err := w.names.WriteString(name); err != nil {
		return fmt.Errorf("writing name for %d: %w", id, err)
	}

	w.offset += 8 + uint64(len(content))
	w.count++
	return nil
}

// Close flushes and closes the three files.
func (w *DocStoreWriter) Close() error {
	for _, b := range []*bufio.Writer{w.docs, w.offsets, w.names} {
		if err := b.Flush(); err != nil {
			return fmt.Errorf("flushing document store: %w", err)
		}
	}
	for _, f := range []*os.File{w.docsFile, w.offsetsFile, w.namesFile} {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// DocStore serves random-access document content and name lookups. Offsets
// and names load eagerly; content reads go through a shared read-only map of
// documents.dat.
type DocStore struct {
	docs    *mmap.ReaderAt
	offsets map[uint32]uint64
	names   map[uint32]string
	nameIDs map[string]uint32
	count   int
}

// OpenDocStore loads doc_offsets.dat and doc_names.dat and maps documents.dat.
// Any missing file is ErrIndexMissing.
func OpenDocStore(root string) (*DocStore, error) {
	offsets, err := readOffsets(filepath.Join(root, DocOffsetsFile))
	if err != nil {
		return nil, err
	}
	names, err := readNames(filepath.Join(root, DocNamesFile))
	if err != nil {
		return nil, err
	}
	docs, err := mmap.Open(filepath.Join(root, DocumentsFile))
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"document store not found under %s", root)
	}
	nameIDs := make(map[string]uint32, len(names))
	for id, name := range names {
		nameIDs[name] = id
	}
	return &DocStore{
		docs:    docs,
		offsets: offsets,
		names:   names,
		nameIDs: nameIDs,
		count:   len(offsets),
	}, nil
}

func readOffsets(path string) (map[uint32]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"document offsets not found: %s", path)
	}
	defer f.Close()

	offsets := make(map[uint32]uint64)
	r := bufio.NewReader(f)
	var rec [12]byte
	for {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"truncated record in %s", path)
		}
		id := binary.LittleEndian.Uint32(rec[0:4])
		offsets[id] = binary.LittleEndian.Uint64(rec[4:12])
	}
	return offsets, nil
}

func readNames(path string) (map[uint32]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"document names not found: %s", path)
	}
	defer f.Close()

	names := make(map[uint32]string)
	r := bufio.NewReader(f)
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"truncated record in %s", path)
		}
		id := binary.LittleEndian.Uint32(hdr[0:4])
		nameLen := binary.LittleEndian.Uint32(hdr[4:8])
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"truncated name for id %d in %s", id, path)
		}
		names[id] = string(name)
	}
	return names, nil
}

// Count returns the number of stored documents.
func (s *DocStore) Count() int {
	return s.count
}

// Name returns the external name for a doc id.
func (s *DocStore) Name(id uint32) (string, bool) {
	name, ok := s.names[id]
	return name, ok
}

// NameToID returns the external name → doc id map.
func (s *DocStore) NameToID() map[string]uint32 {
	return s.nameIDs
}

// IDByName returns the doc id for an external name.
func (s *DocStore) IDByName(name string) (uint32, bool) {
	id, ok := s.nameIDs[name]
	return id, ok
}

// Content reads one document's normalised content via its stored offset.
func (s *DocStore) Content(id uint32) (string, error) {
	offset, ok := s.offsets[id]
	if !ok {
		return "", fmt.Errorf("doc id %d not in document store", id)
	}
	var hdr [8]byte
	if _, err := s.docs.ReadAt(hdr[:], int64(offset)); err != nil {
		return "", pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
			"short header read for doc %d at offset %d", id, offset)
	}
	storedID := binary.LittleEndian.Uint32(hdr[0:4])
	if storedID != id {
		return "", pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
			"document store id mismatch: want %d, found %d at offset %d", id, storedID, offset)
	}
	contentLen := binary.LittleEndian.Uint32(hdr[4:8])
	if int64(offset)+8+int64(contentLen) > int64(s.docs.Len()) {
		return "", pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
			"content length %d for doc %d overflows documents.dat", contentLen, id)
	}
	buf := make([]byte, contentLen)
	if contentLen > 0 {
		if _, err := s.docs.ReadAt(buf, int64(offset)+8); err != nil {
			return "", pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"short content read for doc %d", id)
		}
	}
	return string(buf), nil
}

// Close unmaps documents.dat.
func (s *DocStore) Close() error {
	return s.docs.Close()
}
