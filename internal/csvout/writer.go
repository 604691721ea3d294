// Package csvout writes flattened rows as a UTF-8 CSV file with a byte
// order mark, so spreadsheet tools detect the encoding.
package csvout

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/schema"
)

const (
	defaultDirMode  = 0o755
	defaultFileMode = 0o644
	bufferSize      = 64 << 10
)

// ErrClosed is returned when writing to a committed or aborted writer.
var ErrClosed = errors.New("csvout: writer closed")

// Writer streams rows into a temporary file next to the destination. The
// destination only appears once Commit succeeds.
type Writer struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	enc    io.WriteCloser
	csv    *csv.Writer
	cols   []string
	record []string
	rows   int
	closed bool
}

// Create opens a writer for path and writes the header row. Missing parent
// directories are created.
func Create(path string, s schema.Schema) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("csvout: create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("csvout: create tmp: %w", err)
	}

	w := &Writer{
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, bufferSize),
		cols: s.Columns(),
	}
	w.enc = transform.NewWriter(w.buf, unicode.UTF8BOM.NewEncoder())
	w.csv = csv.NewWriter(w.enc)
	w.csv.UseCRLF = true
	w.record = make([]string, len(w.cols))

	if err := w.csv.Write(w.cols); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("csvout: write header: %w", err)
	}
	return w, nil
}

// Write appends one row in column order. Columns the row lacks are written
// empty; keys outside the schema are ignored.
func (w *Writer) Write(row *model.Row) error {
	if w.closed {
		return ErrClosed
	}
	for i, col := range w.cols {
		w.record[i] = row.Get(col)
	}
	if err := w.csv.Write(w.record); err != nil {
		return fmt.Errorf("csvout: write row %d: %w", w.rows, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Commit flushes, syncs and renames the temporary file onto the destination.
func (w *Writer) Commit() error {
	if w.closed {
		return ErrClosed
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("csvout: flush csv: %w", err)
	}
	if err := w.enc.Close(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("csvout: flush encoder: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("csvout: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("csvout: sync: %w", err)
	}
	tmp := w.file.Name()
	w.closed = true
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csvout: close: %w", err)
	}
	if err := os.Chmod(tmp, defaultFileMode); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csvout: chmod: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csvout: rename: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	tmp := w.file.Name()
	_ = w.file.Close()
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("csvout: remove tmp: %w", err)
	}
	return nil
}
