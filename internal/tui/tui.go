// Package tui is the interactive front end used when no input is given on
// the command line: a form for the paths, then a live progress view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// ErrNoTerminal is returned when stdin or stdout is not a terminal.
var ErrNoTerminal = errors.New("tui: the interactive UI requires a real terminal; pass --input to convert from the command line")

// Run shows the form pre-filled from defaults and runs each submitted job
// with run until the user quits.
func Run(ctx context.Context, defaults Job, run RunFunc) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return ErrNoTerminal
	}

	page := NewProgressPage(ctx, run)
	app := NewApp(NewFormPage(defaults), page)
	prog := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	page.Stop()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return ErrNoTerminal
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
