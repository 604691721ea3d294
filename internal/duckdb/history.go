package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// Conversion is one row of the conversion history.
type Conversion struct {
	RunID      string
	Input      string
	Output     string
	Events     int
	Skipped    int
	Resumed    bool
	Error      string
	RecordedAt time.Time
}

// EventTable describes a table loaded by the sink.
type EventTable struct {
	Name     string
	Input    string
	Columns  int
	Rows     int64
	LoadedAt time.Time
}

// RecordConversion appends res to the history of runID.
func (s *Store) RecordConversion(ctx context.Context, runID string, res model.FileResult) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var output, errText sql.NullString
	if res.Err != nil {
		errText = sql.NullString{String: res.Err.Error(), Valid: true}
	} else {
		output = sql.NullString{String: res.Output, Valid: res.Output != ""}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (run_id, input, output, events, skipped, resumed, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Input, output, res.Count(), res.Skipped, res.Resumed, errText)
	if err != nil {
		return fmt.Errorf("duckdb: record conversion: %w", err)
	}
	return nil
}

// RecordBatch records every file of b in name order.
func (s *Store) RecordBatch(ctx context.Context, runID string, b model.BatchResult) error {
	for _, name := range b.Names() {
		if err := s.RecordConversion(ctx, runID, b.Files[name]); err != nil {
			return err
		}
	}
	return nil
}

// Conversions returns the history of runID, or of every run when runID is
// empty, oldest first.
func (s *Store) Conversions(ctx context.Context, runID string) ([]Conversion, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	query := `SELECT run_id, input, output, events, skipped, resumed, error, recorded_at FROM conversions`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY recorded_at, input`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query conversions: %w", err)
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		var (
			c             Conversion
			output, errMs sql.NullString
		)
		if err := rows.Scan(&c.RunID, &c.Input, &output, &c.Events, &c.Skipped, &c.Resumed, &errMs, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("duckdb: scan conversion: %w", err)
		}
		c.Output = output.String
		c.Error = errMs.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: iterate conversions: %w", err)
	}
	return out, nil
}

// Tables lists the event tables loaded by the sink, by name.
func (s *Store) Tables(ctx context.Context) ([]EventTable, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, input, column_count, row_count, loaded_at FROM event_tables ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query event tables: %w", err)
	}
	defer rows.Close()

	var out []EventTable
	for rows.Next() {
		var t EventTable
		if err := rows.Scan(&t.Name, &t.Input, &t.Columns, &t.Rows, &t.LoadedAt); err != nil {
			return nil, fmt.Errorf("duckdb: scan event table: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: iterate event tables: %w", err)
	}
	return out, nil
}

// TableColumns returns the column names of table in order.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("duckdb: scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
