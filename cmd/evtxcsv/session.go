package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tinytelemetry/evtxcsv/internal/convert"
	"github.com/tinytelemetry/evtxcsv/internal/duckdb"
	"github.com/tinytelemetry/evtxcsv/internal/evtx"
	"github.com/tinytelemetry/evtxcsv/internal/journal"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/progress"
	"github.com/tinytelemetry/evtxcsv/internal/report"
)

// session owns the optional stores shared by every conversion of one
// invocation: the DuckDB database, the journal and the run report.
type session struct {
	cfg     appConfig
	logger  *slog.Logger
	runID   string
	store   *duckdb.Store
	journal *journal.Journal
	report  *report.Report
}

func openSession(cfg appConfig, logger *slog.Logger) (*session, error) {
	s := &session{
		cfg:    cfg,
		logger: logger,
		runID:  report.NewRunID(),
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	if cfg.DuckDBPath != "" {
		store, err := duckdb.NewStore(cfg.DuckDBPath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.store = store
		logger.Debug("duckdb store opened", "path", store.Path())
	}
	if cfg.ReportPath != "" {
		s.report = report.New(s.runID, time.Now())
		s.report.Mode = convert.ParseMode(cfg.TwoPass).String()
	}
	logger.Debug("session opened", "run_id", s.runID, "journal", cfg.JournalPath, "report", cfg.ReportPath)
	return s, nil
}

// source resolves the reader for input.
func (s *session) source(input string) (evtx.Source, error) {
	src, err := evtx.Resolve(s.cfg.Reader, s.cfg.DumpBinary, input)
	if err != nil {
		return nil, err
	}
	if ds, ok := src.(*evtx.DumpSource); ok {
		s.logger.Debug("reading through evtx_dump", "binary", ds.Binary())
	}
	if s.report != nil {
		s.report.Reader = src.Name()
	}
	return src, nil
}

// converter builds a converter for src that reports to r.
func (s *session) converter(src evtx.Source, r model.Reporter, twoPass bool) *convert.Converter {
	opts := []convert.Option{
		convert.WithReporter(r),
		convert.WithMode(convert.ParseMode(twoPass)),
		convert.WithProgressInterval(s.cfg.ProgressInterval),
		convert.WithWorkers(s.cfg.Workers),
	}
	if s.store != nil {
		opts = append(opts, convert.WithSink(s.store.Sink()))
	}
	if s.journal != nil {
		opts = append(opts, convert.WithJournal(s.journal))
	}
	return convert.New(src, opts...)
}

// record stores a finished batch in the history table and the report. It
// runs even after cancellation so partial runs are still accounted for.
func (s *session) record(ctx context.Context, b model.BatchResult) {
	if s.report != nil {
		s.report.AddBatch(b)
	}
	if s.store != nil {
		if err := s.store.RecordBatch(context.WithoutCancel(ctx), s.runID, b); err != nil {
			s.logger.Warn("recording conversion history failed", "err", err)
		}
	}
}

// convertFile converts one file and records it as a batch of one.
func (s *session) convertFile(ctx context.Context, conv *convert.Converter, in, out string) (model.FileResult, error) {
	res, err := conv.ConvertFile(ctx, in, out)
	b := model.NewBatchResult()
	b.Files[filepath.Base(in)] = res
	s.record(ctx, b)
	return res, err
}

// Close writes the report and releases the stores.
func (s *session) Close() error {
	var errs []error
	if s.report != nil {
		s.report.Finish(time.Now())
		if err := s.report.WriteFile(s.cfg.ReportPath); err != nil {
			errs = append(errs, err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// consoleReporter prints progress for a terminal run and tallies skipped
// records. The bar is dropped when several workers would interleave on one
// line.
func consoleReporter(cfg appConfig, logger *slog.Logger, stdout io.Writer) (model.Reporter, *progress.Counter) {
	var bar model.Reporter
	if cfg.Workers <= 1 {
		bar = progress.NewBar(stdout, 40)
	}
	counter := progress.NewCounter()
	r := progress.Multi(bar, progress.Lines(stdout), progress.Log(logger), counter)
	if cfg.Workers > 1 {
		r = progress.Locked(r)
	}
	return r, counter
}

// printSkipped breaks down skipped records by reason, if there were any.
func printSkipped(w io.Writer, c *progress.Counter) {
	total := c.SkippedTotal()
	if total == 0 {
		return
	}
	fmt.Fprintf(w, "  %d record(s) skipped: %d malformed, %d empty, %d unreadable\n",
		total, c.Skipped(model.SkipMalformed), c.Skipped(model.SkipEmpty), c.Skipped(model.SkipReader))
}
