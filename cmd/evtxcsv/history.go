package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/evtxcsv/internal/duckdb"
	"github.com/tinytelemetry/evtxcsv/internal/journal"
	"github.com/tinytelemetry/evtxcsv/internal/report"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// historyQuery selects what the history command shows.
type historyQuery struct {
	RunID string
	Table string
}

func newHistoryCmd() *cobra.Command {
	var q historyQuery
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past conversions from the DuckDB store, journal or a run report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runHistory(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.String("config", "", "config file (default is $HOME/.config/evtxcsv/config.yml)")
	flags.String("duckdb", "", "DuckDB database written by earlier runs")
	flags.String("journal", "", "conversion journal written by earlier runs")
	flags.String("report", "", "YAML run report to summarize")
	flags.StringVar(&q.RunID, "run", "", "only show conversions of this run ID")
	flags.StringVar(&q.Table, "table", "", "list the columns of this event table")
	return cmd
}

// runHistory prints whichever of the stores cfg names. A missing file is an
// error rather than a new empty store.
func runHistory(ctx context.Context, cfg appConfig, q historyQuery, w io.Writer) error {
	if cfg.DuckDBPath == "" && cfg.JournalPath == "" && cfg.ReportPath == "" {
		return errors.New("history: pass --duckdb, --journal or --report")
	}
	for _, p := range []string{cfg.DuckDBPath, cfg.JournalPath, cfg.ReportPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("history: file not found: %s", p)
		}
	}

	if cfg.DuckDBPath != "" {
		if err := printStoreHistory(ctx, cfg.DuckDBPath, q, w); err != nil {
			return err
		}
	}
	if cfg.JournalPath != "" {
		if err := printJournal(cfg.JournalPath, w); err != nil {
			return err
		}
	}
	if cfg.ReportPath != "" {
		if err := printReport(cfg.ReportPath, w); err != nil {
			return err
		}
	}
	return nil
}

func printStoreHistory(ctx context.Context, path string, q historyQuery, w io.Writer) error {
	store, err := duckdb.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if q.Table != "" {
		cols, err := store.TableColumns(ctx, q.Table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return fmt.Errorf("history: no event table %q", q.Table)
		}
		fmt.Fprintf(w, "Columns of %s:\n", q.Table)
		for i, c := range cols {
			fmt.Fprintf(w, "  %3d  %s\n", i+1, c)
		}
		return nil
	}

	convs, err := store.Conversions(ctx, q.RunID)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		status := "ok"
		switch {
		case c.Error != "":
			status = c.Error
		case c.Resumed:
			status = "resumed"
		}
		rows = append(rows, []string{
			c.RecordedAt.Local().Format(historyTimeFormat), c.RunID, c.Input,
			strconv.Itoa(c.Events), strconv.Itoa(c.Skipped), status,
		})
	}
	fmt.Fprintln(w, "Conversions:")
	fmt.Fprintln(w, renderTable([]string{"When", "Run", "Input", "Events", "Skipped", "Status"}, rows))

	if q.RunID != "" {
		return nil
	}
	tables, err := store.Tables(ctx)
	if err != nil {
		return err
	}
	rows = rows[:0]
	for _, t := range tables {
		rows = append(rows, []string{
			t.Name, t.Input, strconv.Itoa(t.Columns), strconv.FormatInt(t.Rows, 10),
			t.LoadedAt.Local().Format(historyTimeFormat),
		})
	}
	fmt.Fprintln(w, "Event tables:")
	fmt.Fprintln(w, renderTable([]string{"Table", "Input", "Columns", "Rows", "Loaded"}, rows))
	return nil
}

func printJournal(path string, w io.Writer) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	var rows [][]string
	for _, e := range j.Entries() {
		status := "ok"
		if !e.Succeeded() {
			status = e.Error
		}
		rows = append(rows, []string{
			e.At.Local().Format(historyTimeFormat), e.Input, e.Output,
			strconv.Itoa(e.Events), strconv.Itoa(e.Skipped), status,
		})
	}
	fmt.Fprintln(w, "Journal:")
	fmt.Fprintln(w, renderTable([]string{"When", "Input", "Output", "Events", "Skipped", "Status"}, rows))
	return nil
}

func printReport(path string, w io.Writer) error {
	rep, err := report.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run %s started %s", rep.RunID, rep.Started.Local().Format(historyTimeFormat))
	if rep.Reader != "" {
		fmt.Fprintf(w, " (reader %s, %s)", rep.Reader, rep.Mode)
	}
	fmt.Fprintln(w)
	for _, f := range rep.Files {
		if f.Error != "" {
			fmt.Fprintf(w, "  ✘ %s: %s\n", f.Input, f.Error)
			continue
		}
		fmt.Fprintf(w, "  ✔ %s → %s (%d events)\n", f.Input, f.Output, f.Events)
	}
	fmt.Fprintln(w, rep.Summary().Line())
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		Render()
}
