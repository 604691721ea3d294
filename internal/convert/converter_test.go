package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/tinytelemetry/evtxcsv/internal/evtx"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/schema"
)

func parseCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw := []byte(readFile(t, path))
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return records
}

func TestConvertFileSkipsBadRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "Security.xml",
		event("4624", "TargetUserName", "alice"),
		badEvent,
		event("4625", "IpAddress", "10.0.0.9"),
		event("4634"),
	)
	out := filepath.Join(dir, "out", "Security.csv")

	rec := &recorder{}
	c := New(evtx.NewXMLSource(), WithReporter(rec))
	res, err := c.ConvertFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if res.Events != 3 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 3 events and 1 skipped", res)
	}

	records := parseCSV(t, out)
	if len(records) != 4 {
		t.Fatalf("csv records = %d, want header + 3", len(records))
	}
	header := records[0]
	if !slices.Equal(header[:len(model.BaseFields)], model.BaseFields) {
		t.Fatalf("header does not start with base fields: %v", header)
	}
	if !slices.Equal(header[len(model.BaseFields):], []string{"Data_TargetUserName", "Data_IpAddress"}) {
		t.Fatalf("discovered columns = %v", header[len(model.BaseFields):])
	}
	if records[3][0] != "4634" || records[3][len(header)-1] != "" {
		t.Errorf("last row = %v", records[3])
	}

	var skips []model.Skipped
	for _, e := range rec.all() {
		if s, ok := e.(model.Skipped); ok {
			skips = append(skips, s)
		}
	}
	if len(skips) != 1 || skips[0].Index != 1 || skips[0].Reason != model.SkipMalformed {
		t.Fatalf("skipped events = %+v", skips)
	}
}

func TestConvertFileWhitespaceEventCountsAsRow(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "a.xml", "<Event>   </Event>")
	res, err := New(evtx.NewXMLSource()).ConvertFile(context.Background(), in, filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if res.Events != 1 {
		t.Fatalf("Events = %d, want 1", res.Events)
	}
}

func TestConvertFileProgressAndMessages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	events := make([]string, 5)
	for i := range events {
		events[i] = event("1")
	}
	in := writeExport(t, dir, "p.xml", events...)
	out := filepath.Join(dir, "p.csv")

	rec := &recorder{}
	c := New(evtx.NewXMLSource(), WithReporter(rec), WithProgressInterval(2))
	if _, err := c.ConvertFile(context.Background(), in, out); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}

	var reading, writing []int
	var done []model.Done
	for _, e := range rec.all() {
		switch e := e.(type) {
		case model.Reading:
			reading = append(reading, e.Count)
		case model.Writing:
			if e.Total != 5 {
				t.Errorf("Writing total = %d, want 5", e.Total)
			}
			writing = append(writing, e.Count)
		case model.Done:
			done = append(done, e)
		}
	}
	if !slices.Equal(reading, []int{0, 2, 4}) {
		t.Errorf("reading = %v, want [0 2 4]", reading)
	}
	if !slices.Equal(writing, []int{0, 2, 4}) {
		t.Errorf("writing = %v, want [0 2 4]", writing)
	}
	if len(done) != 1 || done[0].Total != 5 || done[0].File != in {
		t.Errorf("done = %+v", done)
	}

	want := []string{"reading " + in, "writing 5 events → " + out, "done " + out}
	if got := rec.messages(); !slices.Equal(got, want) {
		t.Errorf("messages = %q, want %q", got, want)
	}
}

func TestConvertFileMissingInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "x.csv")
	res, err := New(evtx.NewXMLSource()).ConvertFile(context.Background(), filepath.Join(dir, "none.xml"), out)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
	if res.Count() != model.FailedCount {
		t.Errorf("Count = %d, want %d", res.Count(), model.FailedCount)
	}
	if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("output created for missing input")
	}
}

func TestConvertFileFatalStreamLeavesNoOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "corrupt.xml", event("1"))
	outDir := filepath.Join(dir, "out")
	_, err := New(failingSource{evtx.NewXMLSource()}).ConvertFile(context.Background(), in, filepath.Join(outDir, "corrupt.csv"))
	if err == nil || !strings.Contains(err.Error(), "bad chunk header") {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(outDir); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("output dir created although read failed: %v", dirNames(t, outDir))
	}
}

func TestTwoPassMatchesBuffered(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "mixed.xml",
		event("1", "A", "1"),
		badEvent,
		event("2", "B", "x, \"quoted\""),
		event("3", "A", "3", "C", "line\nbreak"),
	)

	buffered := filepath.Join(dir, "buffered.csv")
	twoPass := filepath.Join(dir, "two-pass.csv")
	r1, err := New(evtx.NewXMLSource()).ConvertFile(context.Background(), in, buffered)
	if err != nil {
		t.Fatalf("buffered: %v", err)
	}
	r2, err := New(evtx.NewXMLSource(), WithMode(ModeTwoPass)).ConvertFile(context.Background(), in, twoPass)
	if err != nil {
		t.Fatalf("two-pass: %v", err)
	}
	if r1.Events != r2.Events || r1.Skipped != r2.Skipped {
		t.Fatalf("results differ: %+v vs %+v", r1, r2)
	}
	if readFile(t, buffered) != readFile(t, twoPass) {
		t.Fatal("two-pass output differs from buffered output")
	}
}

func TestTwoPassDetectsChangedSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "live.xml")
	out := filepath.Join(dir, "live.csv")

	_, err := New(&shrinkingSource{count: 3}, WithMode(ModeTwoPass)).ConvertFile(context.Background(), in, out)
	if !errors.Is(err, ErrSourceChanged) {
		t.Fatalf("err = %v, want ErrSourceChanged", err)
	}
	if names := dirNames(t, dir); !slices.Equal(names, []string{"live.xml"}) {
		t.Fatalf("dir = %v, want only the input", names)
	}
}

func TestConvertFileCanceled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "c.xml", event("1"), event("2"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(evtx.NewXMLSource()).ConvertFile(ctx, in, filepath.Join(dir, "c.csv"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if names := dirNames(t, dir); !slices.Equal(names, []string{"c.xml"}) {
		t.Fatalf("dir = %v, want only the input", names)
	}
}

type memorySink struct {
	columns []string
	rows    int
	fail       bool
	failCommit bool
	commits    int
}

type memoryWriter struct {
	s *memorySink
	n int
}

func (s *memorySink) Begin(_ context.Context, _ string, sc schema.Schema) (RowWriter, error) {
	s.columns = sc.Columns()
	return &memoryWriter{s: s}, nil
}

func (w *memoryWriter) Write(*model.Row) error {
	if w.s.fail {
		return errors.New("sink full")
	}
	w.n++
	return nil
}

func (w *memoryWriter) Commit() error {
	if w.s.failCommit {
		return errors.New("sink commit refused")
	}
	w.s.rows = w.n
	w.s.commits++
	return nil
}

func (w *memoryWriter) Abort() error { return nil }

func TestConvertFileFeedsSink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "s.xml", event("1", "A", "a"), event("2"))
	out := filepath.Join(dir, "s.csv")

	sink := &memorySink{}
	if _, err := New(evtx.NewXMLSource(), WithSink(sink)).ConvertFile(context.Background(), in, out); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if sink.rows != 2 || sink.commits != 1 {
		t.Fatalf("sink rows=%d commits=%d", sink.rows, sink.commits)
	}
	if header := parseCSV(t, out)[0]; !slices.Equal(header, sink.columns) {
		t.Fatalf("sink columns %v differ from csv header %v", sink.columns, header)
	}
}

func TestConvertFileSinkFailureFailsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "s.xml", event("1"))
	out := filepath.Join(dir, "s.csv")

	_, err := New(evtx.NewXMLSource(), WithSink(&memorySink{fail: true})).ConvertFile(context.Background(), in, out)
	if err == nil {
		t.Fatal("expected sink failure")
	}
	if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("csv written although the sink failed")
	}
}

func TestConvertFileSinkCommitFailureRemovesCSV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "s.xml", event("1"), event("2"))
	out := filepath.Join(dir, "s.csv")

	sink := &memorySink{failCommit: true}
	res, err := New(evtx.NewXMLSource(), WithSink(sink)).ConvertFile(context.Background(), in, out)
	if err == nil || !strings.Contains(err.Error(), "sink commit refused") {
		t.Fatalf("err = %v, want the sink commit failure", err)
	}
	if res.Events != 0 {
		t.Errorf("Events = %d, want 0", res.Events)
	}
	if names := dirNames(t, dir); !slices.Equal(names, []string{"s.xml"}) {
		t.Fatalf("dir = %v, want only the input", names)
	}
}

func TestConvertFileCSVCommitsBeforeSink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeExport(t, dir, "s.xml", event("1"))
	out := filepath.Join(dir, "s.csv")

	sink := &orderSink{out: out}
	if _, err := New(evtx.NewXMLSource(), WithSink(sink)).ConvertFile(context.Background(), in, out); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if !sink.csvPresent {
		t.Fatal("sink committed before the CSV existed")
	}
}

// orderSink records whether the CSV was already in place at commit time.
type orderSink struct {
	out        string
	csvPresent bool
}

func (s *orderSink) Begin(context.Context, string, schema.Schema) (RowWriter, error) {
	return s, nil
}

func (s *orderSink) Write(*model.Row) error { return nil }

func (s *orderSink) Commit() error {
	_, err := os.Stat(s.out)
	s.csvPresent = err == nil
	return nil
}

func (s *orderSink) Abort() error { return nil }
