package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/evtxcsv/internal/model"
	reporters "github.com/tinytelemetry/evtxcsv/internal/progress"
)

const (
	eventBuffer  = 256
	maxLogLines  = 2000
	chartHeight  = 8
	minLogHeight = 3
)

type eventMsg struct{ event model.Event }

type finishedMsg struct {
	result model.BatchResult
	err    error
}

// ProgressPage runs a job and shows its progress, log and per-file counts.
type ProgressPage struct {
	keys   KeyMap
	run    RunFunc
	parent context.Context

	job     Job
	cancel  context.CancelFunc
	events  chan model.Event
	outcome chan finishedMsg
	done    chan struct{}

	bar     progress.Model
	log     viewport.Model
	lines   []string
	file    string
	phase   string
	percent float64

	filesDone int
	skipped   int
	finished  bool
	canceled  bool
	quitting  bool
	result    model.BatchResult
	err       error

	width  int
	height int
}

// NewProgressPage creates the page; run performs each job it is given.
func NewProgressPage(ctx context.Context, run RunFunc) *ProgressPage {
	return &ProgressPage{
		keys:   DefaultKeyMap(),
		run:    run,
		parent: ctx,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		log:    viewport.New(80, 10),
	}
}

func (p *ProgressPage) ID() string { return PageProgress }

// SetParams receives the Job from the form.
func (p *ProgressPage) SetParams(params any) {
	if job, ok := params.(Job); ok {
		p.job = job
	}
}

// Init starts the job on its own goroutine.
func (p *ProgressPage) Init() tea.Cmd {
	p.reset()

	ctx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	events := make(chan model.Event, eventBuffer)
	outcome := make(chan finishedMsg, 1)
	done := make(chan struct{})
	p.events, p.outcome, p.done = events, outcome, done

	job, run := p.job, p.run
	go func() {
		defer close(done)
		defer close(events)
		res, err := run(ctx, job, reporters.ChannelContext(ctx, events))
		outcome <- finishedMsg{result: res, err: err}
	}()
	return p.wait()
}

func (p *ProgressPage) reset() {
	p.lines = nil
	p.file, p.phase = "", ""
	p.percent = 0
	p.filesDone, p.skipped = 0, 0
	p.finished, p.canceled, p.quitting = false, false, false
	p.result, p.err = model.NewBatchResult(), nil
	p.log.SetContent("")
}

// wait delivers the next event, or the outcome once the job closed its
// event channel.
func (p *ProgressPage) wait() tea.Cmd {
	events, outcome := p.events, p.outcome
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return <-outcome
		}
		return eventMsg{event: e}
	}
}

func (p *ProgressPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.resize(msg.Width, msg.Height)
		return nil, nil

	case eventMsg:
		p.apply(msg.event)
		return p.wait(), nil

	case finishedMsg:
		p.finish(msg)
		if p.quitting {
			return tea.Quit, nil
		}
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *ProgressPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if !p.finished {
		if key.Matches(msg, p.keys.Cancel) && !p.canceled {
			p.canceled = true
			p.appendLog(warnStyle.Render("canceling…"))
			if p.cancel != nil {
				p.cancel()
			}
			return nil, nil
		}
		// Quitting waits for the job to clean up its temporary files.
		if key.Matches(msg, p.keys.ForceQuit) && !p.quitting {
			p.quitting = true
			p.appendLog(warnStyle.Render("quitting once the job stops…"))
			return nil, nil
		}
	} else {
		switch {
		case key.Matches(msg, p.keys.Quit), key.Matches(msg, p.keys.ForceQuit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.Again):
			return nil, &PageNav{PageID: PageForm}
		}
	}

	var cmd tea.Cmd
	p.log, cmd = p.log.Update(msg)
	return cmd, nil
}

func (p *ProgressPage) apply(e model.Event) {
	switch e := e.(type) {
	case model.Reading:
		p.file, p.phase = e.File, fmt.Sprintf("reading… %d records", e.Count)
		p.percent = 0
	case model.Writing:
		p.file, p.phase = e.File, fmt.Sprintf("writing %d/%d", e.Count, e.Total)
		if e.Total > 0 {
			p.percent = float64(e.Count) / float64(e.Total)
		}
	case model.Done:
		p.file, p.phase = e.File, fmt.Sprintf("done, %d events", e.Total)
		p.percent = 1
		p.filesDone++
	case model.Skipped:
		p.skipped++
	case model.Message:
		line := e.Text
		if e.Level >= slog.LevelError {
			line = errorStyle.Render(line)
		}
		p.appendLog(line)
	}
}

func (p *ProgressPage) finish(msg finishedMsg) {
	p.finished = true
	p.result, p.err = msg.result, msg.err
	if p.cancel != nil {
		p.cancel()
	}
	switch {
	case errors.Is(msg.err, context.Canceled):
		p.appendLog(errorStyle.Render("canceled"))
	case msg.err != nil:
		p.appendLog(errorStyle.Render("ERROR: " + msg.err.Error()))
	}
	events, failures, _ := p.result.Totals()
	p.appendLog(fmt.Sprintf("Summary: %d events exported. %d error(s).", events, failures))
}

func (p *ProgressPage) appendLog(line string) {
	p.lines = append(p.lines, line)
	if len(p.lines) > maxLogLines {
		p.lines = p.lines[len(p.lines)-maxLogLines:]
	}
	p.log.SetContent(strings.Join(p.lines, "\n"))
	p.log.GotoBottom()
}

func (p *ProgressPage) resize(width, height int) {
	p.width, p.height = width, height
	p.bar.Width = max(10, min(60, width-20))
	p.log.Width = max(20, width-4)
	reserved := 10
	if p.finished {
		reserved += chartHeight
	}
	p.log.Height = max(minLogHeight, height-reserved)
}

// Stop cancels a running job and blocks until it has returned.
func (p *ProgressPage) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

// Log returns the log lines shown so far, without styling.
func (p *ProgressPage) Log() []string {
	return append([]string(nil), p.lines...)
}

// Result returns the batch result and whether the job has returned.
func (p *ProgressPage) Result() (model.BatchResult, bool) {
	return p.result, p.finished
}

// Err returns the error the job returned with.
func (p *ProgressPage) Err() error {
	return p.err
}

func (p *ProgressPage) View(width, height int) string {
	if width != p.width || height != p.height {
		p.resize(width, height)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("EVTX → CSV"))
	b.WriteString("  ")
	b.WriteString(subtleStyle.Render(p.job.Input))
	b.WriteString("\n\n")

	file := "starting…"
	if p.file != "" {
		file = filepath.Base(p.file)
	}
	b.WriteString(labelStyle.Render(file))
	if p.phase != "" {
		b.WriteString("  " + subtleStyle.Render(p.phase))
	}
	b.WriteString("\n")
	b.WriteString(p.bar.ViewAs(p.percent))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("files done: %d   skipped records: %d", p.filesDone, p.skipped)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(p.log.View()))
	b.WriteString("\n")

	if p.finished {
		if chart := renderCountsChart(p.result, max(20, width-4), chartHeight); chart != "" {
			b.WriteString(chart)
			b.WriteString("\n")
		}
		b.WriteString(statusStyle.Render(" " + helpLine(p.keys.Again, p.keys.Quit, p.keys.Up, p.keys.Down) + " "))
	} else {
		b.WriteString(statusStyle.Render(" " + helpLine(p.keys.Cancel, p.keys.Up, p.keys.Down) + " "))
	}
	return b.String()
}
