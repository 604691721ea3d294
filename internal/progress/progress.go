// Package progress provides model.Reporter implementations for consoles,
// loggers and cross-goroutine delivery.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// Channel forwards every event to ch. It blocks while ch is full and never
// drops an event.
func Channel(ch chan<- model.Event) model.Reporter {
	return model.ReporterFunc(func(e model.Event) {
		ch <- e
	})
}

// ChannelContext is Channel but gives up once ctx is done.
func ChannelContext(ctx context.Context, ch chan<- model.Event) model.Reporter {
	return model.ReporterFunc(func(e model.Event) {
		select {
		case ch <- e:
		case <-ctx.Done():
		}
	})
}

// Log writes messages at their own level, skips at debug and completed
// files at info.
func Log(logger *slog.Logger) model.Reporter {
	return model.ReporterFunc(func(e model.Event) {
		switch e := e.(type) {
		case model.Message:
			logger.Log(context.Background(), e.Level, e.Text, "file", e.File)
		case model.Skipped:
			logger.Debug("skipped record", "file", e.File, "index", e.Index, "reason", string(e.Reason), "err", e.Err)
		case model.Done:
			logger.Info("file converted", "file", e.File, "events", e.Total)
		}
	})
}

// Lines prints the text of every message to w, one per line.
func Lines(w io.Writer) model.Reporter {
	return model.ReporterFunc(func(e model.Event) {
		if m, ok := e.(model.Message); ok {
			fmt.Fprintln(w, m.Text)
		}
	})
}

// Multi fans each event out to every non-nil reporter in order.
func Multi(reporters ...model.Reporter) model.Reporter {
	var rs []model.Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return model.ReporterFunc(func(e model.Event) {
		for _, r := range rs {
			r.Report(e)
		}
	})
}

// Locked serializes calls into r so it can serve concurrent batch workers.
func Locked(r model.Reporter) model.Reporter {
	var mu sync.Mutex
	return model.ReporterFunc(func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		r.Report(e)
	})
}

const (
	barFull  = "█"
	barEmpty = "░"
)

// Bar draws a console progress bar for the write phase of each file.
type Bar struct {
	w     io.Writer
	width int
	drawn bool
}

// NewBar returns a bar of width cells drawn on w.
func NewBar(w io.Writer, width int) *Bar {
	if width <= 0 {
		width = 40
	}
	return &Bar{w: w, width: width}
}

// Report implements model.Reporter.
func (b *Bar) Report(e model.Event) {
	switch e := e.(type) {
	case model.Writing:
		b.draw(e.Count, e.Total)
	case model.Done:
		b.draw(e.Total, e.Total)
		fmt.Fprintln(b.w)
		b.drawn = false
	case model.Message:
		if b.drawn {
			fmt.Fprintln(b.w)
			b.drawn = false
		}
	}
}

func (b *Bar) draw(cur, total int) {
	filled := b.width
	if total > 0 {
		filled = cur * b.width / total
	}
	filled = min(max(filled, 0), b.width)
	fmt.Fprintf(b.w, "\r  [%s%s] %d/%d",
		strings.Repeat(barFull, filled), strings.Repeat(barEmpty, b.width-filled), cur, total)
	b.drawn = true
}

// Counter tallies skipped records by reason. It is safe for concurrent use.
type Counter struct {
	mu      sync.Mutex
	skipped map[model.SkipReason]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{skipped: map[model.SkipReason]int{}}
}

// Report implements model.Reporter.
func (c *Counter) Report(e model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := e.(model.Skipped); ok {
		c.skipped[e.Reason]++
	}
}

// Skipped returns the number of skipped records for reason.
func (c *Counter) Skipped(reason model.SkipReason) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped[reason]
}

// SkippedTotal returns the number of skipped records for all reasons.
func (c *Counter) SkippedTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.skipped {
		n += v
	}
	return n
}
