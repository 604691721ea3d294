// Package report writes a YAML summary of one conversion run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// File is the per-input section of a report.
type File struct {
	Input   string `yaml:"input"`
	Output  string `yaml:"output,omitempty"`
	Events  int    `yaml:"events"`
	Skipped int    `yaml:"skipped"`
	Resumed bool   `yaml:"resumed,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Totals aggregates a run.
type Totals struct {
	Files    int `yaml:"files"`
	Events   int `yaml:"events"`
	Failures int `yaml:"failures"`
	Skipped  int `yaml:"skipped"`
}

// Report describes one run.
type Report struct {
	RunID    string    `yaml:"run_id"`
	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished,omitempty"`
	Reader   string    `yaml:"reader,omitempty"`
	Mode     string    `yaml:"mode,omitempty"`
	Totals   Totals    `yaml:"totals"`
	Files    []File    `yaml:"files"`
}

// New starts a report for runID.
func New(runID string, started time.Time) *Report {
	return &Report{RunID: runID, Started: started.UTC(), Files: []File{}}
}

// Add records one file result.
func (r *Report) Add(res model.FileResult) {
	f := File{
		Input:   res.Input,
		Output:  res.Output,
		Events:  res.Count(),
		Skipped: res.Skipped,
		Resumed: res.Resumed,
	}
	if res.Err != nil {
		f.Error = res.Err.Error()
		f.Output = ""
	}
	r.Files = append(r.Files, f)
}

// AddBatch records every file of b in name order.
func (r *Report) AddBatch(b model.BatchResult) {
	for _, name := range b.Names() {
		r.Add(b.Files[name])
	}
}

// Finish stamps the end time and computes totals.
func (r *Report) Finish(t time.Time) {
	r.Finished = t.UTC()
	r.Totals = r.computeTotals()
}

func (r *Report) computeTotals() Totals {
	tot := Totals{Files: len(r.Files)}
	for _, f := range r.Files {
		if f.Error != "" {
			tot.Failures++
			continue
		}
		tot.Events += f.Events
		tot.Skipped += f.Skipped
	}
	return tot
}

// Summary returns the current aggregates.
func (r *Report) Summary() Totals {
	return r.computeTotals()
}

// Line renders the one-line console summary.
func (t Totals) Line() string {
	return fmt.Sprintf("Summary: %d events exported. %d error(s).", t.Events, t.Failures)
}

// Marshal renders the report as YAML with files sorted by input.
func (r *Report) Marshal() ([]byte, error) {
	out := *r
	out.Files = append([]File(nil), r.Files...)
	sort.SliceStable(out.Files, func(a, b int) bool { return out.Files[a].Input < out.Files[b].Input })
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return data, nil
}

// WriteFile writes the report to path through a temp file and rename.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("report: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("report: rename: %w", err)
	}
	return nil
}

// Load reads a report written by WriteFile.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: parse: %w", err)
	}
	return &r, nil
}
