package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/tinytelemetry/evtxcsv/internal/convert"
	"github.com/tinytelemetry/evtxcsv/internal/evtx"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printStartupBanner(w io.Writer, cfg appConfig) {
	fmt.Fprintln(w, startupBanner(cfg))
}

func startupBanner(cfg appConfig) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╦  ╦╔╦╗═╗ ╦  ╔═╗╔═╗╦  ╦
    ║╣ ╚╗╔╝ ║ ╔╩╦╝  ║  ╚═╗╚╗╔╝
    ╚═╝ ╚╝  ╩ ╩ ╚═  ╚═╝╚═╝ ╚╝ `)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Conversion"))
	lines = append(lines, "")
	reader := cyan.Render(cfg.Reader)
	if cfg.Reader != evtx.KindXML {
		reader += " " + dim.Render("("+shortenPath(cfg.DumpBinary)+")")
	}
	lines = append(lines, fmt.Sprintf("    %s  Reader         %s", check, reader))
	lines = append(lines, fmt.Sprintf("    %s  Mode           %s", check, cyan.Render(convert.ParseMode(cfg.TwoPass).String())))
	lines = append(lines, fmt.Sprintf("    %s  Workers        %s", check, cyan.Render(fmt.Sprint(cfg.Workers))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Outputs"))
	lines = append(lines, "")
	for _, o := range []struct{ label, path string }{
		{"DuckDB       ", cfg.DuckDBPath},
		{"Journal      ", cfg.JournalPath},
		{"Report       ", cfg.ReportPath},
	} {
		if o.path != "" {
			lines = append(lines, fmt.Sprintf("    %s  %s  %s", check, o.label, dim.Render(shortenPath(o.path))))
		} else {
			lines = append(lines, fmt.Sprintf("    %s  %s  %s", dot, o.label, dim.Render("disabled")))
		}
	}
	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
