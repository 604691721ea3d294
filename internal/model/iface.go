package model

import (
	"fmt"
	"log/slog"
)

// Event is one structured notification emitted by the conversion pipeline.
// The concrete types are Reading, Writing, Done, Skipped and Message.
type Event interface {
	event()
	// Source returns the input file the event belongs to.
	Source() string
}

// Reporter receives pipeline events. Implementations used with concurrent
// batch workers must be safe for concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) {
	f(e)
}

// Emit reports e on r, tolerating a nil reporter.
func Emit(r Reporter, e Event) {
	if r != nil {
		r.Report(e)
	}
}

// Reading reports read phase progress. The total is unknown at this point.
type Reading struct {
	File  string
	Count int
}

// Writing reports write phase progress.
type Writing struct {
	File  string
	Count int
	Total int
}

// Done is emitted once per file after its last row was written.
type Done struct {
	File  string
	Total int
}

// SkipReason classifies why a record was dropped.
type SkipReason string

const (
	SkipMalformed SkipReason = "malformed"
	SkipEmpty     SkipReason = "empty"
	SkipReader    SkipReason = "reader"
)

// Skipped reports one record that could not be flattened.
type Skipped struct {
	File   string
	Index  int
	Reason SkipReason
	Err    error
}

// Message is a diagnostic line for the log view.
type Message struct {
	File  string
	Level slog.Level
	Text  string
}

// Infof builds an info-level Message.
func Infof(file, format string, args ...any) Message {
	return Message{File: file, Level: slog.LevelInfo, Text: fmt.Sprintf(format, args...)}
}

// Errorf builds an error-level Message.
func Errorf(file, format string, args ...any) Message {
	return Message{File: file, Level: slog.LevelError, Text: fmt.Sprintf(format, args...)}
}

func (Reading) event() {}
func (Writing) event() {}
func (Done) event()    {}
func (Skipped) event() {}
func (Message) event() {}

func (e Reading) Source() string { return e.File }
func (e Writing) Source() string { return e.File }
func (e Done) Source() string    { return e.File }
func (e Skipped) Source() string { return e.File }
func (e Message) Source() string { return e.File }
