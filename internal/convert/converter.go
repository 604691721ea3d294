// Package convert turns event log files into CSV files, one at a time or a
// directory at a time.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tinytelemetry/evtxcsv/internal/csvout"
	"github.com/tinytelemetry/evtxcsv/internal/evtx"
	"github.com/tinytelemetry/evtxcsv/internal/flatten"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/schema"
)

// ErrSourceChanged is returned in two-pass mode when the second read yields
// a different number of rows than the first.
var ErrSourceChanged = errors.New("convert: source changed between passes")

// Converter converts event log files read through one evtx.Source.
type Converter struct {
	source   evtx.Source
	reporter model.Reporter
	mode     Mode
	interval int
	sink     Sink
	journal  Journal
	workers  int
}

// New returns a converter reading through source.
func New(source evtx.Source, opts ...Option) *Converter {
	c := &Converter{
		source:   source,
		mode:     ModeBuffered,
		interval: model.DefaultProgressInterval,
		workers:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile converts in to the CSV file out. Records that cannot be
// flattened are skipped and counted; any other failure fails the file and
// leaves no output behind.
func (c *Converter) ConvertFile(ctx context.Context, in, out string) (model.FileResult, error) {
	res := model.FileResult{Input: in, Output: out}
	if _, err := os.Stat(in); err != nil {
		res.Err = fmt.Errorf("convert: %w", err)
		return res, res.Err
	}

	c.emit(model.Infof(in, "reading %s", in))

	var err error
	switch c.mode {
	case ModeTwoPass:
		res.Events, res.Skipped, err = c.convertTwoPass(ctx, in, out)
	default:
		res.Events, res.Skipped, err = c.convertBuffered(ctx, in, out)
	}
	if err != nil {
		res.Events = 0
		res.Err = err
		return res, err
	}

	c.emit(model.Infof(in, "done %s", out))
	return res, nil
}

func (c *Converter) convertBuffered(ctx context.Context, in, out string) (int, int, error) {
	acc := schema.New()
	var rows []*model.Row

	_, skipped, err := c.scan(ctx, in, true, func(i int, row *model.Row) error {
		rows = append(rows, row)
		if _, err := acc.Observe(row); err != nil {
			return err
		}
		if i%c.interval == 0 {
			c.emit(model.Reading{File: in, Count: i})
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	n, err := c.write(ctx, in, out, acc.Freeze(), len(rows), func(put func(*model.Row) error) error {
		for _, row := range rows {
			if err := put(row); err != nil {
				return err
			}
		}
		return nil
	})
	return n, skipped, err
}

func (c *Converter) convertTwoPass(ctx context.Context, in, out string) (int, int, error) {
	acc := schema.New()
	total, skipped, err := c.scan(ctx, in, true, func(i int, row *model.Row) error {
		if _, err := acc.Observe(row); err != nil {
			return err
		}
		if i%c.interval == 0 {
			c.emit(model.Reading{File: in, Count: i})
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	n, err := c.write(ctx, in, out, acc.Freeze(), total, func(put func(*model.Row) error) error {
		_, _, err := c.scan(ctx, in, false, func(_ int, row *model.Row) error {
			return put(row)
		})
		return err
	})
	return n, skipped, err
}

// scan flattens every record of in and calls fn with the running index of
// each accepted row. Skipped records are reported when report is set.
func (c *Converter) scan(ctx context.Context, in string, report bool, fn func(int, *model.Row) error) (rows, skipped int, err error) {
	stream, err := c.source.Open(ctx, in)
	if err != nil {
		return 0, 0, err
	}
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return rows, skipped, err
		}
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rows, skipped, ctxErr
			}
			return rows, skipped, fmt.Errorf("convert: read %s: %w", in, err)
		}

		row, reason, ferr := flattenRecord(rec)
		if ferr != nil {
			skipped++
			if report {
				c.emit(model.Skipped{File: in, Index: rec.Index, Reason: reason, Err: ferr})
			}
			continue
		}
		if err := fn(rows, row); err != nil {
			return rows, skipped, err
		}
		rows++
	}
	return rows, skipped, nil
}

func flattenRecord(rec evtx.Record) (*model.Row, model.SkipReason, error) {
	if rec.Err != nil {
		return nil, model.SkipReader, rec.Err
	}
	row, err := flatten.Flatten(rec.XML)
	if err != nil {
		reason := model.SkipMalformed
		var se *flatten.SkipError
		if errors.As(err, &se) {
			reason = se.Reason
		}
		return nil, reason, err
	}
	return row, "", nil
}

// write creates out with schema s and streams the rows produced by feed.
// The file only appears once exactly total rows were written.
func (c *Converter) write(ctx context.Context, in, out string, s schema.Schema, total int, feed func(put func(*model.Row) error) error) (int, error) {
	c.emit(model.Infof(in, "writing %d events → %s", total, out))

	w, err := csvout.Create(out, s)
	if err != nil {
		return 0, err
	}
	writers := []RowWriter{w}
	if c.sink != nil {
		sw, err := c.sink.Begin(ctx, in, s)
		if err != nil {
			_ = w.Abort()
			return 0, fmt.Errorf("convert: sink: %w", err)
		}
		writers = append(writers, sw)
	}
	abort := func() {
		for _, rw := range writers {
			_ = rw.Abort()
		}
	}

	written := 0
	err = feed(func(row *model.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, rw := range writers {
			if err := rw.Write(row); err != nil {
				return err
			}
		}
		if written%c.interval == 0 {
			c.emit(model.Writing{File: in, Count: written, Total: total})
		}
		written++
		return nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && w.Rows() != total {
		err = fmt.Errorf("%w: %s had %d rows, now %d", ErrSourceChanged, in, total, w.Rows())
	}
	if err != nil {
		abort()
		return 0, err
	}

	// The CSV commits first. A sink that then fails takes the CSV with it.
	if err := w.Commit(); err != nil {
		for _, rw := range writers[1:] {
			_ = rw.Abort()
		}
		return 0, fmt.Errorf("convert: commit %s: %w", out, err)
	}
	for i := 1; i < len(writers); i++ {
		if err := writers[i].Commit(); err != nil {
			for _, rw := range writers[i+1:] {
				_ = rw.Abort()
			}
			_ = os.Remove(out)
			return 0, fmt.Errorf("convert: sink commit %s: %w", in, err)
		}
	}

	c.emit(model.Done{File: in, Total: written})
	return written, nil
}

func (c *Converter) emit(e model.Event) {
	model.Emit(c.reporter, e)
}
