package convert

import (
	"context"
	"time"

	"github.com/tinytelemetry/evtxcsv/internal/journal"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/schema"
)

// Mode selects how a file is read.
type Mode int

const (
	// ModeBuffered reads every row into memory, then writes the file.
	ModeBuffered Mode = iota
	// ModeTwoPass reads the file once for the schema and again to stream
	// rows out, holding one row at a time.
	ModeTwoPass
)

func (m Mode) String() string {
	switch m {
	case ModeTwoPass:
		return "two-pass"
	default:
		return "buffered"
	}
}

// ParseMode maps a --two-pass style flag to a Mode.
func ParseMode(twoPass bool) Mode {
	if twoPass {
		return ModeTwoPass
	}
	return ModeBuffered
}

// Sink receives every converted file in addition to its CSV.
type Sink interface {
	Begin(ctx context.Context, input string, s schema.Schema) (RowWriter, error)
}

// RowWriter accepts the rows of one file. Nothing becomes visible before
// Commit; Abort discards everything written.
type RowWriter interface {
	Write(row *model.Row) error
	Commit() error
	Abort() error
}

// Journal remembers finished conversions across runs.
type Journal interface {
	Lookup(input string, size int64, modTime time.Time) (journal.Entry, bool)
	Append(e journal.Entry) (uint64, error)
}

// Option configures a Converter.
type Option func(*Converter)

// WithReporter sets the receiver of progress and log events.
func WithReporter(r model.Reporter) Option {
	return func(c *Converter) { c.reporter = r }
}

// WithMode selects buffered or two-pass reading.
func WithMode(m Mode) Option {
	return func(c *Converter) { c.mode = m }
}

// WithProgressInterval sets how many rows pass between progress events.
func WithProgressInterval(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.interval = n
		}
	}
}

// WithSink hands every converted file to s as well.
func WithSink(s Sink) Option {
	return func(c *Converter) { c.sink = s }
}

// WithJournal skips files already converted and records finished ones.
func WithJournal(j Journal) Option {
	return func(c *Converter) { c.journal = j }
}

// WithWorkers converts up to n files of a batch concurrently.
func WithWorkers(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.workers = n
		}
	}
}
