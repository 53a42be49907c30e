package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	"github.com/cascadeir/cascade/internal/model"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

// PostingRef locates one posting list inside a shard's postings file. Length
// counts postings, not bytes.
type PostingRef struct {
	Offset uint64
	Length uint64
}

// ShardWriter appends posting lists to one shard's postings.dat and records
// each term in dict.dat as {term\0, u64 offset, u64 length}.
type ShardWriter struct {
	dictFile     *os.File
	postingsFile *os.File
	dict         *bufio.Writer
	postings     *bufio.Writer
	offset       uint64
	terms        uint64
}

// NewShardWriter creates the shard directory and its two files.
func NewShardWriter(root string, k int) (*ShardWriter, error) {
	dir := ShardDir(root, k)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating shard directory %s: %w", dir, err)
	}
	dictFile, err := os.Create(filepath.Join(dir, DictFileName))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", DictFileName, err)
	}
	postingsFile, err := os.Create(filepath.Join(dir, PostingsFileName))
	if err != nil {
		dictFile.Close()
		return nil, fmt.Errorf("creating %s: %w", PostingsFileName, err)
	}
	return &ShardWriter{
		dictFile:     dictFile,
		postingsFile: postingsFile,
		dict:         bufio.NewWriter(dictFile),
		postings:     bufio.NewWriter(postingsFile),
	}, nil
}

// Append writes one complete posting list for a term. Postings must already be
// strictly ascending and duplicate-free; offsets advance monotonically.
func (w *ShardWriter) Append(term string, postings model.ResultSet) error {
	var u32 [4]byte
	for _, docID := range postings {
		binary.LittleEndian.PutUint32(u32[:], docID)
		if _, err := w.postings.Write(u32[:]); err != nil {
			return fmt.Errorf("writing postings for %q: %w", term, err)
		}
	}

	if _, err := w.dict.WriteString(term); err != nil {
		return fmt.Errorf("writing dictionary term %q: %w", term, err)
	}
	if err := w.dict.WriteByte(0); err != nil {
		return fmt.Errorf("terminating dictionary term %q: %w", term, err)
	}
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], w.offset)
	if _, err := w.dict.Write(u64[:]); err != nil {
		return fmt.Errorf("writing offset for %q: %w", term, err)
	}
	binary.LittleEndian.PutUint64(u64[:], uint64(len(postings)))
	if _, err := w.dict.Write(u64[:]); err != nil {
		return fmt.Errorf("writing length for %q: %w", term, err)
	}

	w.offset += uint64(len(postings)) * 4
	w.terms++
	return nil
}

// Terms returns the number of dictionary entries written so far.
func (w *ShardWriter) Terms() uint64 {
	return w.terms
}

// Close flushes and closes both files.
func (w *ShardWriter) Close() error {
	if err := w.dict.Flush(); err != nil {
		return fmt.Errorf("flushing dictionary: %w", err)
	}
	if err := w.postings.Flush(); err != nil {
		return fmt.Errorf("flushing postings: %w", err)
	}
	if err := w.dictFile.Close(); err != nil {
		return err
	}
	return w.postingsFile.Close()
}

// ReadDict loads a shard dictionary into memory. The file is a stream of
// {term\0, u64 offset, u64 length} records until EOF.
func ReadDict(root string, k int) (map[string]PostingRef, error) {
	path := filepath.Join(ShardDir(root, k), DictFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"shard dictionary not found: %s", path)
	}
	defer f.Close()

	dict := make(map[string]PostingRef)
	r := bufio.NewReader(f)
	var u64 [8]byte
	for {
		term, err := r.ReadString(0)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
		}
		term = term[:len(term)-1]
		if _, err := io.ReadFull(r, u64[:]); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"truncated offset for %q in %s", term, path)
		}
		offset := binary.LittleEndian.Uint64(u64[:])
		if _, err := io.ReadFull(r, u64[:]); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"truncated length for %q in %s", term, path)
		}
		length := binary.LittleEndian.Uint64(u64[:])
		dict[term] = PostingRef{Offset: offset, Length: length}
	}
	return dict, nil
}

// PostingsReader serves random-access posting list reads from one shard's
// postings file through a shared read-only memory map.
type PostingsReader struct {
	reader *mmap.ReaderAt
	path   string
}

// OpenPostings maps a shard's postings file.
func OpenPostings(root string, k int) (*PostingsReader, error) {
	path := filepath.Join(ShardDir(root, k), PostingsFileName)
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexMissing, pkgerrors.ExitMissingInput,
			"shard postings not found: %s", path)
	}
	return &PostingsReader{reader: reader, path: path}, nil
}

// Read returns the posting list at ref as an ascending doc-id set. Offsets
// past EOF or lengths overflowing the file surface as index corruption.
func (p *PostingsReader) Read(ref PostingRef) (model.ResultSet, error) {
	byteLen := ref.Length * 4
	end := ref.Offset + byteLen
	if end > uint64(p.reader.Len()) {
		return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
			"posting list [%d, %d) past EOF of %s (%d bytes)", ref.Offset, end, p.path, p.reader.Len())
	}
	buf := make([]byte, byteLen)
	if byteLen > 0 {
		if _, err := p.reader.ReadAt(buf, int64(ref.Offset)); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrIndexCorruption, pkgerrors.ExitMissingInput,
				"short read at %d in %s: %v", ref.Offset, p.path, err)
		}
	}
	out := make(model.ResultSet, ref.Length)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}

// Close unmaps the postings file.
func (p *PostingsReader) Close() error {
	return p.reader.Close()
}
