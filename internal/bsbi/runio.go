package bsbi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cascadeir/cascade/internal/model"
)

// Run files are streams of {term\0, u32 doc_id} records, sorted by
// (term, doc_id). runWriter and runReader are the only code that touches the
// format.

type runWriter struct {
	file *os.File
	buf  *bufio.Writer
}

func newRunWriter(path string) (*runWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating run file %s: %w", path, err)
	}
	return &runWriter{file: f, buf: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (w *runWriter) write(pair model.TermDocPair) error {
	if _, err := w.buf.WriteString(pair.Term); err != nil {
		return err
	}
	if err := w.buf.WriteByte(0); err != nil {
		return err
	}
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], pair.DocID)
	_, err := w.buf.Write(u32[:])
	return err
}

func (w *runWriter) close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

type runReader struct {
	file *os.File
	buf  *bufio.Reader
	path string
}

func openRun(path string) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run file %s: %w", path, err)
	}
	return &runReader{file: f, buf: bufio.NewReaderSize(f, 1<<20), path: path}, nil
}

// next returns the following pair, or io.EOF at end of file.
func (r *runReader) next() (model.TermDocPair, error) {
	term, err := r.buf.ReadString(0)
	if err != nil {
		if err == io.EOF && term == "" {
			return model.TermDocPair{}, io.EOF
		}
		return model.TermDocPair{}, fmt.Errorf("reading term from %s: %w", r.path, err)
	}
	var u32 [4]byte
	if _, err := io.ReadFull(r.buf, u32[:]); err != nil {
		return model.TermDocPair{}, fmt.Errorf("reading doc id from %s: %w", r.path, err)
	}
	return model.TermDocPair{
		Term:  term[:len(term)-1],
		DocID: binary.LittleEndian.Uint32(u32[:]),
	}, nil
}

func (r *runReader) close() error {
	return r.file.Close()
}
