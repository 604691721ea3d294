package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Formats accepted by Init.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Init creates a logger writing to w, installs it as the slog default and
// returns it. Format "json" selects the JSON handler; anything else text.
func Init(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFileSink opens ~/.local/state/<app>/<app>.log for appending, used
// while a full-screen UI owns the terminal. It falls back to stderr when
// the file cannot be opened. The returned func closes the file.
func OpenFileSink(app string) (io.Writer, func()) {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Stderr, func() {}
	}
	return openFileSinkIn(filepath.Join(home, ".local", "state", app), app)
}

func openFileSinkIn(dir, app string) (io.Writer, func()) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return os.Stderr, func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, app+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stderr, func() {}
	}
	return f, func() {
		_ = f.Close()
	}
}
