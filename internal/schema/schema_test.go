package schema

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

func rowOf(keys ...string) *model.Row {
	r := model.NewRow(len(keys))
	for _, k := range keys {
		r.Set(k, "v")
	}
	return r
}

func TestNewSeedsBaseFields(t *testing.T) {
	t.Parallel()
	s := New().Freeze()
	if !slices.Equal(s.Columns(), model.BaseFields) {
		t.Fatalf("Columns = %v, want base fields", s.Columns())
	}
}

func TestObserveAppendsInFirstSeenOrder(t *testing.T) {
	t.Parallel()
	a := New()

	if n, err := a.Observe(rowOf("EventID", "Data_Zeta", "Data_Alpha")); err != nil || n != 2 {
		t.Fatalf("Observe #1 = (%d, %v), want (2, nil)", n, err)
	}
	if n, err := a.Observe(rowOf("Data_Alpha", "UD_Beta", "Data_Zeta")); err != nil || n != 1 {
		t.Fatalf("Observe #2 = (%d, %v), want (1, nil)", n, err)
	}

	cols := a.Freeze().Columns()
	tail := cols[len(model.BaseFields):]
	want := []string{"Data_Zeta", "Data_Alpha", "UD_Beta"}
	if !slices.Equal(tail, want) {
		t.Errorf("discovered columns = %v, want %v (first-seen, not alphabetical)", tail, want)
	}
}

func TestFreezeRejectsFurtherRows(t *testing.T) {
	t.Parallel()
	a := New()
	s := a.Freeze()
	if _, err := a.Observe(rowOf("Data_New")); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Observe after Freeze err = %v, want ErrFrozen", err)
	}
	if s.Index("Data_New") != -1 {
		t.Error("frozen schema gained a column")
	}
}

func TestSchemaIndexAndCopy(t *testing.T) {
	t.Parallel()
	s := New().Freeze()
	if got := s.Index("EventID"); got != 0 {
		t.Errorf("Index(EventID) = %d, want 0", got)
	}
	if got := s.Index("Binary"); got != len(model.BaseFields)-1 {
		t.Errorf("Index(Binary) = %d, want %d", got, len(model.BaseFields)-1)
	}
	cols := s.Columns()
	cols[0] = "mutated"
	if s.Columns()[0] != "EventID" {
		t.Error("Columns must return a copy")
	}
}

func TestProperty_SchemaCoversEveryRow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("frozen schema is a superset of every observed row", prop.ForAll(
		func(rowsKeys [][]int) bool {
			a := New()
			rows := make([]*model.Row, 0, len(rowsKeys))
			for _, keys := range rowsKeys {
				r := model.NewRow(len(keys))
				for _, k := range keys {
					r.Set(fmt.Sprintf("Data_%d", k), "x")
				}
				rows = append(rows, r)
				if _, err := a.Observe(r); err != nil {
					return false
				}
			}
			s := a.Freeze()
			for _, r := range rows {
				if !covers(s, r) {
					return false
				}
			}
			// No duplicates.
			seen := map[string]bool{}
			for _, c := range s.Columns() {
				if seen[c] {
					return false
				}
				seen[c] = true
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.IntRange(0, 40))),
	))

	properties.TestingRun(t)
}

// covers reports whether every key of row is a column of s.
func covers(s Schema, row *model.Row) bool {
	for k := range row.All() {
		if _, ok := s.index[k]; !ok {
			return false
		}
	}
	return true
}
