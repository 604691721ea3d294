package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Entry records how one input file was converted.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Input   string    `json:"input"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Output  string    `json:"output"`
	Events  int       `json:"events"`
	Skipped int       `json:"skipped"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Succeeded reports whether the conversion finished without error.
func (e Entry) Succeeded() bool {
	return e.Error == ""
}

// Journal is a durable append-only log of finished conversions, one JSON
// entry per line. Only the latest entry per input is kept across restarts.
type Journal struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	nextSeq uint64
	latest  map[string]Entry
}

// Open creates or opens a journal at path. On startup it compacts the file
// down to the latest entry per input and ignores a partially written
// trailing line.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	latest, maxSeq, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := compact(path, latest); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	return &Journal{
		path:    path,
		file:    f,
		nextSeq: maxSeq + 1,
		latest:  latest,
	}, nil
}

// Append persists one entry and returns its sequence number.
func (j *Journal) Append(e Entry) (uint64, error) {
	if strings.TrimSpace(e.Input) == "" {
		return 0, errors.New("journal: entry has no input")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, errors.New("journal: closed")
	}

	e.Seq = j.nextSeq
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("journal: marshal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.file.Write(line); err != nil {
		return 0, fmt.Errorf("journal: write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("journal: sync entry: %w", err)
	}
	j.nextSeq++
	j.latest[e.Input] = e
	return e.Seq, nil
}

// Lookup returns the latest entry for input when it succeeded and the file
// still has the recorded size and modification time.
func (j *Journal) Lookup(input string, size int64, modTime time.Time) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.latest[input]
	if !ok || !e.Succeeded() {
		return Entry{}, false
	}
	if e.Size != size || !e.ModTime.Equal(modTime) {
		return Entry{}, false
	}
	return e, true
}

// Entries returns the latest entry per input in sequence order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return sortedEntries(j.latest)
}

// Close closes the underlying journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func sortedEntries(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out
}

// load reads every complete line of path. Reading stops at the first torn
// or malformed line.
func load(path string) (map[string]Entry, uint64, error) {
	latest := map[string]Entry{}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return latest, 0, nil
		}
		return nil, 0, fmt.Errorf("journal: open for load: %w", err)
	}
	defer f.Close()

	var maxSeq uint64
	reader := bufio.NewReader(f)
	for {
		line, rerr := reader.ReadBytes('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, 0, fmt.Errorf("journal: load read: %w", rerr)
		}
		if len(line) == 0 {
			break
		}
		if !strings.HasSuffix(string(line), "\n") {
			// Ignore a potentially partial trailing line.
			break
		}

		var e Entry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			break
		}
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
		if prev, ok := latest[e.Input]; !ok || e.Seq > prev.Seq {
			latest[e.Input] = e
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
	}
	return latest, maxSeq, nil
}

func compact(path string, latest map[string]Entry) error {
	tmpPath := path + ".compact"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, defaultFileMode)
	if err != nil {
		return fmt.Errorf("journal: open compact tmp: %w", err)
	}

	w := bufio.NewWriter(dst)
	enc := json.NewEncoder(w)
	for _, e := range sortedEntries(latest) {
		if err := enc.Encode(e); err != nil {
			_ = dst.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("journal: compact write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact flush: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact sync: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal: compact rename: %w", err)
	}
	return nil
}
