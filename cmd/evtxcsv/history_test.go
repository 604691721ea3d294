package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistoryAfterRun(t *testing.T) {
	dir := t.TempDir()
	in := writeExport(t, dir, "Security.xml", 4624, 4625)
	cfg := testConfig(in)
	cfg.DuckDBPath = filepath.Join(dir, "events.duckdb")
	cfg.JournalPath = filepath.Join(dir, "journal.jsonl")
	cfg.ReportPath = filepath.Join(dir, "run.yml")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), cfg, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v (stderr %q)", err, stderr.String())
	}

	var out bytes.Buffer
	if err := runHistory(context.Background(), cfg, historyQuery{}, &out); err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Conversions:", "Event tables:", "Journal:",
		in, "Security", "ok",
		"Summary: 2 events exported. 0 error(s).",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("history missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryTableColumns(t *testing.T) {
	dir := t.TempDir()
	in := writeExport(t, dir, "System.xml", 7036)
	cfg := testConfig(in)
	cfg.DuckDBPath = filepath.Join(dir, "events.duckdb")
	if err := run(context.Background(), cfg, &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out bytes.Buffer
	if err := runHistory(context.Background(), cfg, historyQuery{Table: "System"}, &out); err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Columns of System:") || !strings.Contains(got, "EventID") {
		t.Errorf("unexpected column listing:\n%s", got)
	}

	err := runHistory(context.Background(), cfg, historyQuery{Table: "Nope"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), `no event table "Nope"`) {
		t.Errorf("err = %v, want unknown table error", err)
	}
}

func TestHistoryErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     appConfig
		wantErr string
	}{
		{"nothing to show", appConfig{}, "pass --duckdb, --journal or --report"},
		{"missing database", appConfig{DuckDBPath: filepath.Join(dir, "none.duckdb")}, "file not found"},
		{"missing report", appConfig{ReportPath: filepath.Join(dir, "none.yml")}, "file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runHistory(context.Background(), tt.cfg, historyQuery{}, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
