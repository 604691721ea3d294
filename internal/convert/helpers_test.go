package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tinytelemetry/evtxcsv/internal/evtx"
	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const ns = "http://schemas.microsoft.com/win/2004/08/events/event"

// event builds one Event element with the given EventData name/value pairs.
func event(id string, pairs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<Event xmlns="%s"><System><EventID>%s</EventID><Level>4</Level></System><EventData>`, ns, id)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, `<Data Name="%s">%s</Data>`, pairs[i], pairs[i+1])
	}
	b.WriteString("</EventData></Event>")
	return b.String()
}

const badEvent = `<Event><System><EventID>1</EventID></System><Broken attr=x/></Event>`

func writeExport(t *testing.T, dir, name string, events ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := `<?xml version="1.0" encoding="UTF-8"?>` + "\n<Events>\n" + strings.Join(events, "\n") + "\n</Events>\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Report(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) messages() []string {
	var out []string
	for _, e := range r.all() {
		if m, ok := e.(model.Message); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

// failingSource wraps the XML reader and fails files whose name contains
// "corrupt" with a fatal stream error.
type failingSource struct {
	evtx.Source
}

func (s failingSource) Open(ctx context.Context, path string) (evtx.Stream, error) {
	if strings.Contains(filepath.Base(path), "corrupt") {
		return &sliceStream{fatal: errors.New("bad chunk header")}, nil
	}
	return s.Source.Open(ctx, path)
}

// shrinkingSource yields one record fewer on every Open.
type shrinkingSource struct {
	mu    sync.Mutex
	count int
}

func (*shrinkingSource) Name() string { return "shrinking" }
func (*shrinkingSource) Ext() string  { return ".xml" }

func (s *shrinkingSource) Open(context.Context, string) (evtx.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]evtx.Record, s.count)
	for i := range recs {
		recs[i] = evtx.Record{Index: i, XML: []byte(event(fmt.Sprint(i)))}
	}
	s.count--
	return &sliceStream{records: recs}, nil
}

type sliceStream struct {
	records []evtx.Record
	fatal   error
	pos     int
}

func (s *sliceStream) Next() (evtx.Record, error) {
	if s.pos >= len(s.records) {
		if s.fatal != nil {
			return evtx.Record{}, s.fatal
		}
		return evtx.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (*sliceStream) Close() error { return nil }

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(raw)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}
