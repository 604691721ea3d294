package model

import (
	"iter"
	"sort"
)

// Row is one flattened event: an ordered mapping from column name to value.
// Looking up a column the row does not carry yields the empty string.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow returns an empty row with room for size columns.
func NewRow(size int) *Row {
	return &Row{
		keys:   make([]string, 0, size),
		values: make(map[string]string, size),
	}
}

// Set stores value under key. An existing key keeps its position.
func (r *Row) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key, or "".
func (r *Row) Get(key string) string {
	return r.values[key]
}

// Lookup returns the value under key and whether the row carries it.
func (r *Row) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the row carries key.
func (r *Row) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Len returns the number of columns in the row.
func (r *Row) Len() int {
	return len(r.keys)
}

// Keys returns a copy of the row's column names in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// All iterates columns in insertion order.
func (r *Row) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range r.keys {
			if !yield(k, r.values[k]) {
				return
			}
		}
	}
}

// Equal reports whether both rows hold the same columns, values and order.
func (r *Row) Equal(o *Row) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.keys) != len(o.keys) {
		return false
	}
	for i, k := range r.keys {
		if o.keys[i] != k || o.values[k] != r.values[k] {
			return false
		}
	}
	return true
}

// FileResult is the outcome of converting one input file.
type FileResult struct {
	Input   string
	Output  string
	Events  int // rows written; meaningless when Err is set
	Skipped int // records dropped because they could not be flattened
	Resumed bool
	Err     error
}

// Failed reports whether the file could not be converted.
func (r FileResult) Failed() bool {
	return r.Err != nil
}

// Count returns the events written, or FailedCount when the file failed.
func (r FileResult) Count() int {
	if r.Err != nil {
		return FailedCount
	}
	return r.Events
}

// BatchResult maps input file names (base names) to their results.
type BatchResult struct {
	Files map[string]FileResult
}

// NewBatchResult returns an empty batch result.
func NewBatchResult() BatchResult {
	return BatchResult{Files: map[string]FileResult{}}
}

// Counts returns file name -> events written, or FailedCount for failed files.
func (b BatchResult) Counts() map[string]int {
	out := make(map[string]int, len(b.Files))
	for name, r := range b.Files {
		out[name] = r.Count()
	}
	return out
}

// Names returns the file names in lexical order.
func (b BatchResult) Names() []string {
	names := make([]string, 0, len(b.Files))
	for name := range b.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of files in the batch.
func (b BatchResult) Len() int {
	return len(b.Files)
}

// Totals sums events over successful files and counts failures.
func (b BatchResult) Totals() (events, failures, skipped int) {
	for _, r := range b.Files {
		if r.Failed() {
			failures++
			continue
		}
		events += r.Events
		skipped += r.Skipped
	}
	return events, failures, skipped
}
