// Package schema discovers the column layout of one output file.
package schema

import (
	"errors"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// ErrFrozen is returned when rows are observed after the schema was frozen.
var ErrFrozen = errors.New("schema: accumulator is frozen")

// Accumulator tracks the ordered union of all row keys seen for one file.
// It starts with the base fields and only ever appends, in first-seen order.
type Accumulator struct {
	columns []string
	index   map[string]int
	frozen  bool
}

// New returns an accumulator seeded with model.BaseFields.
func New() *Accumulator {
	a := &Accumulator{
		columns: make([]string, 0, len(model.BaseFields)*2),
		index:   make(map[string]int, len(model.BaseFields)*2),
	}
	for _, f := range model.BaseFields {
		a.add(f)
	}
	return a
}

func (a *Accumulator) add(col string) bool {
	if _, ok := a.index[col]; ok {
		return false
	}
	a.index[col] = len(a.columns)
	a.columns = append(a.columns, col)
	return true
}

// Observe appends every key of row not seen before and returns how many
// columns were added.
func (a *Accumulator) Observe(row *model.Row) (int, error) {
	if a.frozen {
		return 0, ErrFrozen
	}
	added := 0
	for k := range row.All() {
		if a.add(k) {
			added++
		}
	}
	return added, nil
}

// Len returns the current number of columns.
func (a *Accumulator) Len() int {
	return len(a.columns)
}

// Freeze stops accumulation and returns the final column order.
func (a *Accumulator) Freeze() Schema {
	a.frozen = true
	return Schema{columns: a.columns, index: a.index}
}

// Schema is a frozen, ordered set of column names.
type Schema struct {
	columns []string
	index   map[string]int
}

// Columns returns a copy of the column names in order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.columns)
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

