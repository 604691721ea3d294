package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversions.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seq1, err := j.Append(Entry{Input: "/logs/System.evtx", Size: 1024, ModTime: mod, Output: "/out/System.csv", Events: 12})
	if err != nil {
		t.Fatalf("Append #1: %v", err)
	}
	seq2, err := j.Append(Entry{Input: "/logs/App.evtx", Size: 10, ModTime: mod, Error: "evtx_dump failed"})
	if err != nil {
		t.Fatalf("Append #2: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence did not advance: seq1=%d seq2=%d", seq1, seq2)
	}

	tests := []struct {
		name   string
		input  string
		size   int64
		mod    time.Time
		wantOK bool
	}{
		{name: "unchanged", input: "/logs/System.evtx", size: 1024, mod: mod, wantOK: true},
		{name: "size changed", input: "/logs/System.evtx", size: 2048, mod: mod},
		{name: "mtime changed", input: "/logs/System.evtx", size: 1024, mod: mod.Add(time.Second)},
		{name: "failed entry", input: "/logs/App.evtx", size: 10, mod: mod},
		{name: "unknown", input: "/logs/Other.evtx", size: 1, mod: mod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := j.Lookup(tt.input, tt.size, tt.mod)
			if ok != tt.wantOK {
				t.Fatalf("Lookup ok=%v, want %v", ok, tt.wantOK)
			}
			if ok && e.Events != 12 {
				t.Fatalf("Lookup events=%d, want 12", e.Events)
			}
		})
	}
}

func TestOpenKeepsLatestPerInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversions.journal")
	mod := time.Unix(1700000000, 0).UTC()

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, events := range []int{1, 2, 3} {
		if _, err := j.Append(Entry{Input: "a.evtx", Size: 1, ModTime: mod, Events: events}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	entries := j2.Entries()
	if len(entries) != 1 || entries[0].Events != 3 {
		t.Fatalf("Entries after reopen=%+v, want one entry with 3 events", entries)
	}
	seq, err := j2.Append(Entry{Input: "b.evtx"})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if seq <= entries[0].Seq {
		t.Fatalf("seq after reopen=%d, want > %d", seq, entries[0].Seq)
	}
}

func TestOpenIgnoresPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversions.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = j.Append(Entry{Input: "ok.evtx", Events: 5})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate torn write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"seq":999,"input":`); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close torn writer: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	entries := j2.Entries()
	if len(entries) != 1 || entries[0].Input != "ok.evtx" {
		t.Fatalf("Entries after torn write=%+v, want [ok.evtx]", entries)
	}
	if _, err := j2.Append(Entry{Input: "next.evtx"}); err != nil {
		t.Fatalf("Append after torn write: %v", err)
	}
	j3, err := Open(path)
	if err != nil {
		t.Fatalf("Open third: %v", err)
	}
	defer func() { _ = j3.Close() }()
	if got := len(j3.Entries()); got != 2 {
		t.Fatalf("Entries after recovery=%d, want 2", got)
	}
}

func TestAppendRejectsEmptyInput(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "j"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()
	if _, err := j.Append(Entry{}); err == nil {
		t.Fatal("expected error for entry without input")
	}
}
