package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tinytelemetry/evtxcsv/internal/convert"
	"github.com/tinytelemetry/evtxcsv/internal/model"
	"github.com/tinytelemetry/evtxcsv/internal/schema"
)

// Sink loads every converted file into its own table, one VARCHAR column per
// schema column. Re-converting a file replaces its table.
type Sink struct {
	store *Store
}

// Sink returns a convert.Sink backed by the store.
func (s *Store) Sink() *Sink {
	return &Sink{store: s}
}

var _ convert.Sink = (*Sink)(nil)

// Begin creates the table for input inside a new transaction.
func (k *Sink) Begin(ctx context.Context, input string, sc schema.Schema) (convert.RowWriter, error) {
	table := TableName(input)
	cols := ColumnNames(sc.Columns())

	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("duckdb: begin %s: %w", table, err)
	}

	defs := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c) + " VARCHAR"
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("duckdb: create table %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("duckdb: prepare insert %s: %w", table, err)
	}

	return &tableWriter{
		ctx:     ctx,
		tx:      tx,
		stmt:    stmt,
		table:   table,
		input:   input,
		columns: sc.Columns(),
		args:    make([]any, len(cols)),
	}, nil
}

type tableWriter struct {
	ctx     context.Context
	tx      *sql.Tx
	stmt    *sql.Stmt
	table   string
	input   string
	columns []string
	args    []any
	rows    int64
	done    bool
}

// Write inserts one row. Columns the row does not carry become NULL.
func (w *tableWriter) Write(row *model.Row) error {
	for i, c := range w.columns {
		if v, ok := row.Lookup(c); ok {
			w.args[i] = v
		} else {
			w.args[i] = nil
		}
	}
	if _, err := w.stmt.ExecContext(w.ctx, w.args...); err != nil {
		return fmt.Errorf("duckdb: insert into %s: %w", w.table, err)
	}
	w.rows++
	return nil
}

func (w *tableWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	w.stmt.Close()
	_, err := w.tx.ExecContext(w.ctx,
		"INSERT OR REPLACE INTO event_tables (table_name, input, column_count, row_count, loaded_at) VALUES (?, ?, ?, ?, current_timestamp)",
		w.table, w.input, len(w.columns), w.rows)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("duckdb: register %s: %w", w.table, err)
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("duckdb: commit %s: %w", w.table, err)
	}
	return nil
}

func (w *tableWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.stmt.Close()
	if err := w.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("duckdb: rollback %s: %w", w.table, err)
	}
	return nil
}

// TableName derives a table name from an input path: the file stem with
// every character outside [A-Za-z0-9_] replaced by '_'.
func TableName(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "t_" + name
	}
	return name
}

// ColumnNames maps schema columns to table columns. DuckDB identifiers are
// case-insensitive, so a column equal to an earlier one ignoring case gets
// the first free _2, _3, ... suffix.
func ColumnNames(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, len(cols))
	for i, c := range cols {
		name := c
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = c + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
