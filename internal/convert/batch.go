package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/evtxcsv/internal/journal"
	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const defaultDirMode = 0o755

// ConvertDir converts every file directly under inDir whose extension
// matches the source, writing <stem>.csv files into outDir. An empty outDir
// means inDir. A failing file is reported and recorded, and the batch
// moves on.
func (c *Converter) ConvertDir(ctx context.Context, inDir, outDir string) (model.BatchResult, error) {
	if outDir == "" {
		outDir = inDir
	}
	if err := os.MkdirAll(outDir, defaultDirMode); err != nil {
		return model.NewBatchResult(), fmt.Errorf("convert: create output dir: %w", err)
	}

	inputs, err := c.ListInputs(inDir)
	if err != nil {
		return model.NewBatchResult(), err
	}
	if len(inputs) == 0 {
		c.emit(model.Infof(inDir, "no %s files found in %s", c.source.Ext(), inDir))
		return model.NewBatchResult(), nil
	}
	return c.ConvertFiles(ctx, inputs, outDir)
}

// ListInputs returns the regular files directly under dir whose extension
// matches the source, case-insensitively, sorted by name.
func (c *Converter) ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("convert: list %s: %w", dir, err)
	}
	ext := c.source.Ext()
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// OutputPath returns <outDir>/<stem>.csv for input, or the same name next
// to the input when outDir is empty.
func OutputPath(input, outDir string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	return filepath.Join(outDir, stem+model.OutputExt)
}

// ConvertFiles converts an explicit list of inputs into outDir, isolating
// failures the same way ConvertDir does. Results are keyed by base name.
// Only cancellation stops the batch early.
func (c *Converter) ConvertFiles(ctx context.Context, inputs []string, outDir string) (model.BatchResult, error) {
	result := model.NewBatchResult()
	if outDir != "" {
		if err := os.MkdirAll(outDir, defaultDirMode); err != nil {
			return result, fmt.Errorf("convert: create output dir: %w", err)
		}
	}

	keys := resultKeys(inputs)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(max(1, c.workers))
	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		key := keys[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := c.convertTracked(ctx, in, OutputPath(in, outDir))
			if res.Err != nil && isCanceled(res.Err) {
				return res.Err
			}
			mu.Lock()
			result.Files[key] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, ctx.Err()
}

// convertTracked converts one batch member, consulting and updating the
// journal when one is configured.
func (c *Converter) convertTracked(ctx context.Context, in, out string) model.FileResult {
	var (
		size    int64
		modTime time.Time
	)
	info, statErr := os.Stat(in)
	if statErr == nil {
		size, modTime = info.Size(), info.ModTime()
	}

	if c.journal != nil && statErr == nil {
		if e, ok := c.journal.Lookup(in, size, modTime); ok && e.Output == out && fileExists(out) {
			c.emit(model.Infof(in, "unchanged since %s, keeping %s", e.At.Format(time.RFC3339), out))
			return model.FileResult{Input: in, Output: out, Events: e.Events, Skipped: e.Skipped, Resumed: true}
		}
	}

	res, err := c.ConvertFile(ctx, in, out)
	if err != nil {
		if isCanceled(err) {
			return res
		}
		c.emit(model.Errorf(in, "converting %s: %v", filepath.Base(in), err))
	}

	if c.journal != nil && statErr == nil {
		e := journal.Entry{
			Input:   in,
			Size:    size,
			ModTime: modTime,
			Output:  out,
			Events:  res.Events,
			Skipped: res.Skipped,
		}
		if res.Err != nil {
			e.Error = res.Err.Error()
		}
		if _, jerr := c.journal.Append(e); jerr != nil {
			c.emit(model.Errorf(in, "journal: %v", jerr))
		}
	}
	return res
}

// resultKeys names each input by its base name, falling back to the full
// path when two inputs share one.
func resultKeys(inputs []string) []string {
	seen := make(map[string]int, len(inputs))
	for _, in := range inputs {
		seen[filepath.Base(in)]++
	}
	keys := make([]string, len(inputs))
	for i, in := range inputs {
		if base := filepath.Base(in); seen[base] == 1 {
			keys[i] = base
		} else {
			keys[i] = in
		}
	}
	return keys
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
