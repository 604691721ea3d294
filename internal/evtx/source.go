// Package evtx turns Windows event log files into a sequence of per-record
// XML documents.
package evtx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Reader kinds accepted by Resolve.
const (
	KindAuto = "auto"
	KindDump = "evtx_dump"
	KindXML  = "xml"
)

var (
	// ErrReaderUnavailable means the backing reader cannot be used on this host.
	ErrReaderUnavailable = errors.New("evtx: reader unavailable")
	// ErrTruncated marks a record whose closing tag never arrived.
	ErrTruncated = errors.New("evtx: truncated record")
	// ErrRecordTooLarge marks a record longer than MaxRecordSize. The stream
	// drops it up to its closing tag and carries on.
	ErrRecordTooLarge = errors.New("evtx: record too large")
)

// Source opens event log files of one format.
type Source interface {
	Name() string
	// Ext is the input file extension, including the dot.
	Ext() string
	Open(ctx context.Context, path string) (Stream, error)
}

// Stream yields the records of one file in file order.
type Stream interface {
	// Next returns io.EOF after the last record. Any other error is fatal
	// for the file; per-record failures travel in Record.Err instead.
	Next() (Record, error)
	Close() error
}

// Record is one event as an XML document.
type Record struct {
	Index int
	XML   []byte
	Err   error
}

// Resolve picks a source for kind. With KindAuto an input path ending in
// .xml selects the XML export reader, anything else selects evtx_dump.
func Resolve(kind, dumpBinary, input string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindAuto:
		if strings.EqualFold(filepath.Ext(input), xmlExt) {
			return NewXMLSource(), nil
		}
		return NewDumpSource(dumpBinary)
	case KindDump:
		return NewDumpSource(dumpBinary)
	case KindXML:
		return NewXMLSource(), nil
	default:
		return nil, fmt.Errorf("evtx: unknown reader %q (want %s, %s or %s)", kind, KindAuto, KindDump, KindXML)
	}
}
