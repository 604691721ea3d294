package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinytelemetry/evtxcsv/internal/convert"
	"github.com/tinytelemetry/evtxcsv/internal/logging"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/progress"
	"github.com/tinytelemetry/evtxcsv/internal/report"
	"github.com/tinytelemetry/evtxcsv/internal/tui"
)

// run dispatches on the input: a folder, a single file, or nothing at all,
// which opens the interactive UI.
func run(ctx context.Context, cfg appConfig, stdout, stderr io.Writer) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return runInteractive(ctx, cfg)
	}

	logger := logging.Init(stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	info, err := os.Stat(cfg.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stderr, "ERROR: file not found: %s\n", cfg.Input)
			return errReported
		}
		return err
	}

	sess, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	if isTerminal(stdout) {
		printStartupBanner(stdout, cfg)
	}

	if info.IsDir() {
		err = runDir(ctx, sess, cfg, stdout, logger)
	} else {
		err = runFile(ctx, sess, cfg, stdout, logger)
	}
	if cerr := sess.Close(); cerr != nil {
		logger.Error("closing session", "err", cerr)
		if err == nil {
			err = cerr
		}
	}
	return err
}

func runDir(ctx context.Context, sess *session, cfg appConfig, stdout io.Writer, logger *slog.Logger) error {
	outDir := cfg.Output
	if outDir == "" {
		outDir = cfg.Input
	}
	src, err := sess.source(cfg.Input)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Input folder  : %s\n", cfg.Input)
	fmt.Fprintf(stdout, "Output folder : %s\n", outDir)
	fmt.Fprintln(stdout)

	reporter, counter := consoleReporter(cfg, logger, stdout)
	conv := sess.converter(src, reporter, cfg.TwoPass)
	batch, err := conv.ConvertDir(ctx, cfg.Input, outDir)
	sess.record(ctx, batch)

	events, failures, skipped := batch.Totals()
	logger.Info("batch finished", "files", batch.Len(), "events", events, "failures", failures, "skipped", skipped)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, report.Totals{Events: events, Failures: failures}.Line())
	printSkipped(stdout, counter)
	return err
}

func runFile(ctx context.Context, sess *session, cfg appConfig, stdout io.Writer, logger *slog.Logger) error {
	out := outputFile(cfg.Input, cfg.Output)
	src, err := sess.source(cfg.Input)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Input file  : %s\n", cfg.Input)
	fmt.Fprintf(stdout, "Output file : %s\n", out)
	fmt.Fprintln(stdout)

	reporter, counter := consoleReporter(cfg, logger, stdout)
	conv := sess.converter(src, reporter, cfg.TwoPass)
	res, err := sess.convertFile(ctx, conv, cfg.Input, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n✔ %d events exported → %s\n", res.Events, out)
	printSkipped(stdout, counter)
	return nil
}

// outputFile picks the CSV path for a single input. An empty output means
// next to the input, an existing directory means inside it, anything else
// is taken as the file name.
func outputFile(input, output string) string {
	if output == "" {
		return convert.OutputPath(input, "")
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return convert.OutputPath(input, output)
	}
	return output
}

// runInteractive opens the terminal UI. Logs go to a file because the UI
// owns the screen.
func runInteractive(ctx context.Context, cfg appConfig) error {
	w, closeLog := logging.OpenFileSink(appName)
	defer closeLog()
	logger := logging.Init(w, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	sess, err := openSession(cfg, logger)
	if err != nil {
		return err
	}

	defaults := tui.Job{Input: cfg.Input, Output: cfg.Output, TwoPass: cfg.TwoPass}
	err = tui.Run(ctx, defaults, func(ctx context.Context, job tui.Job, r model.Reporter) (model.BatchResult, error) {
		return runJob(ctx, sess, job, progress.Multi(r, progress.Log(logger)))
	})
	if cerr := sess.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// runJob converts what the form asked for, a folder or a single file.
func runJob(ctx context.Context, sess *session, job tui.Job, r model.Reporter) (model.BatchResult, error) {
	info, err := os.Stat(job.Input)
	if err != nil {
		return model.NewBatchResult(), fmt.Errorf("file not found: %s", job.Input)
	}
	src, err := sess.source(job.Input)
	if err != nil {
		return model.NewBatchResult(), err
	}
	conv := sess.converter(src, r, job.TwoPass)

	if info.IsDir() {
		batch, err := conv.ConvertDir(ctx, job.Input, job.Output)
		sess.record(ctx, batch)
		return batch, err
	}

	out := outputFile(job.Input, job.Output)
	res, err := sess.convertFile(ctx, conv, job.Input, out)
	batch := model.NewBatchResult()
	batch.Files[filepath.Base(job.Input)] = res
	return batch, err
}
