package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldInput = iota
	fieldOutput
	fieldCount
)

// FormPage asks for the input path (file or folder) and the output path.
type FormPage struct {
	keys    KeyMap
	fields  []textinput.Model
	focus   int
	twoPass bool
	err     string
}

// NewFormPage creates the form pre-filled from defaults.
func NewFormPage(defaults Job) *FormPage {
	fields := make([]textinput.Model, fieldCount)

	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "Security.evtx or a folder of .evtx files"
	in.CharLimit = 4096
	in.Width = 60
	in.SetValue(defaults.Input)
	fields[fieldInput] = in

	out := textinput.New()
	out.Prompt = "› "
	out.Placeholder = "optional: .csv file or output folder"
	out.CharLimit = 4096
	out.Width = 60
	out.SetValue(defaults.Output)
	fields[fieldOutput] = out

	p := &FormPage{
		keys:    DefaultKeyMap(),
		fields:  fields,
		twoPass: defaults.TwoPass,
	}
	p.fields[fieldInput].Focus()
	return p
}

func (p *FormPage) ID() string { return PageForm }

func (p *FormPage) Init() tea.Cmd {
	return textinput.Blink
}

// Job returns the job described by the current field values.
func (p *FormPage) Job() Job {
	return Job{
		Input:   strings.TrimSpace(p.fields[fieldInput].Value()),
		Output:  strings.TrimSpace(p.fields[fieldOutput].Value()),
		TwoPass: p.twoPass,
	}
}

func (p *FormPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return p.updateFocused(msg), nil
	}

	switch {
	case key.Matches(km, p.keys.ForceQuit), km.Type == tea.KeyEsc:
		return tea.Quit, nil
	case key.Matches(km, p.keys.NextField):
		return p.setFocus((p.focus + 1) % fieldCount), nil
	case key.Matches(km, p.keys.PrevField):
		return p.setFocus((p.focus + fieldCount - 1) % fieldCount), nil
	case key.Matches(km, p.keys.ToggleTwo):
		p.twoPass = !p.twoPass
		return nil, nil
	case key.Matches(km, p.keys.Submit):
		if p.focus < fieldCount-1 {
			return p.setFocus(p.focus + 1), nil
		}
		return p.submit()
	}
	return p.updateFocused(msg), nil
}

func (p *FormPage) submit() (tea.Cmd, *PageNav) {
	job := p.Job()
	if job.Input == "" {
		p.err = "choose an .evtx file or a folder first"
		return p.setFocus(fieldInput), nil
	}
	if _, err := os.Stat(job.Input); err != nil {
		p.err = fmt.Sprintf("file not found: %s", job.Input)
		return p.setFocus(fieldInput), nil
	}
	p.err = ""
	return nil, &PageNav{PageID: PageProgress, Params: job}
}

func (p *FormPage) setFocus(i int) tea.Cmd {
	p.focus = i
	var cmd tea.Cmd
	for j := range p.fields {
		if j == i {
			cmd = p.fields[j].Focus()
		} else {
			p.fields[j].Blur()
		}
	}
	return cmd
}

func (p *FormPage) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.fields[p.focus], cmd = p.fields[p.focus].Update(msg)
	return cmd
}

func (p *FormPage) View(width, _ int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EVTX → CSV"))
	b.WriteString("\n\n")

	labels := [fieldCount]string{"Input (.evtx file or folder)", "Output (.csv file or folder)"}
	for i, f := range p.fields {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(f.View())
		b.WriteString("\n\n")
	}

	mode := "buffered"
	if p.twoPass {
		mode = "two-pass (low memory)"
	}
	b.WriteString(subtleStyle.Render("Mode: " + mode))
	b.WriteString("\n")

	if p.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(p.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(helpLine(p.keys.NextField, p.keys.Submit, p.keys.ToggleTwo, p.keys.ForceQuit)))

	if width > 0 {
		return lipgloss.NewStyle().MaxWidth(width).Render(b.String())
	}
	return b.String()
}
