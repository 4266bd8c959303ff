// Package tui renders the fetch phase as a live per-resource dashboard using
// Bubble Tea. It is an alternative front-end to the plain spinner: the fetch
// orchestrator stays in charge, the dashboard only mirrors its events.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/envboot/envboot/internal/fetch"
	"github.com/envboot/envboot/internal/format"
	"github.com/envboot/envboot/internal/ui"
)

type taskStatus int

const (
	statusPending taskStatus = iota
	statusRunning
	statusDone
	statusSkipped
	statusFailed
)

type startedMsg string

type finishedMsg fetch.Result

type allDoneMsg struct{}

// Model is the Bubble Tea model for the fetch dashboard. One row per
// resource, updated as lifecycle events arrive.
type Model struct {
	theme    ui.TUITheme
	names    []string
	statuses map[string]taskStatus
	results  map[string]fetch.Result
	spin     spinner.Model
	finished int
	quitting bool
}

// NewModel creates a dashboard model for the given resource names. Row order
// follows the slice order.
func NewModel(names []string) Model {
	theme := ui.GetCurrentTUITheme()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(theme.Accent)

	statuses := make(map[string]taskStatus, len(names))
	for _, n := range names {
		statuses[n] = statusPending
	}
	return Model{
		theme:    theme,
		names:    names,
		statuses: statuses,
		results:  make(map[string]fetch.Result, len(names)),
		spin:     sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		m.statuses[string(msg)] = statusRunning
		return m, nil
	case finishedMsg:
		res := fetch.Result(msg)
		switch {
		case res.Skipped:
			m.statuses[res.Name] = statusSkipped
		case res.Err != nil:
			m.statuses[res.Name] = statusFailed
		default:
			m.statuses[res.Name] = statusDone
		}
		m.results[res.Name] = res
		m.finished++
		return m, nil
	case allDoneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		// The dashboard is a view, not the run: closing it does not stop
		// the downloads. Cancellation is the process signal's job.
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Accent)
	dimStyle := lipgloss.NewStyle().Foreground(m.theme.Dim)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Fetching resources"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d/%d", m.finished, len(m.names))))
	b.WriteString("\n\n")
	for _, name := range m.names {
		b.WriteString("  ")
		b.WriteString(m.renderRow(name))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("press q to hide the dashboard"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderRow(name string) string {
	nameStyle := lipgloss.NewStyle().Foreground(m.theme.Text).Width(20)
	switch m.statuses[name] {
	case statusRunning:
		return m.spin.View() + nameStyle.Render(name) +
			lipgloss.NewStyle().Foreground(m.theme.Accent).Render("downloading")
	case statusDone:
		res := m.results[name]
		detail := fmt.Sprintf("done  %s in %s",
			format.FormatBytes(uint64(res.Bytes)), format.FormatExecutionDuration(res.Duration))
		return "✓ " + nameStyle.Render(name) +
			lipgloss.NewStyle().Foreground(m.theme.Success).Render(detail)
	case statusSkipped:
		return "- " + nameStyle.Render(name) +
			lipgloss.NewStyle().Foreground(m.theme.Dim).Render("already present")
	case statusFailed:
		return "✗ " + nameStyle.Render(name) +
			lipgloss.NewStyle().Foreground(m.theme.Error).Render("failed")
	default:
		return "· " + nameStyle.Render(name) +
			lipgloss.NewStyle().Foreground(m.theme.Dim).Render("queued")
	}
}

// Reporter forwards fetch lifecycle events into a running Bubble Tea
// program. Implements fetch.ProgressReporter.
type Reporter struct {
	program *tea.Program
}

// FetchStarted implements fetch.ProgressReporter.
func (r *Reporter) FetchStarted(name string) {
	r.program.Send(startedMsg(name))
}

// FetchFinished implements fetch.ProgressReporter.
func (r *Reporter) FetchFinished(res fetch.Result) {
	r.program.Send(finishedMsg(res))
}

// Run displays the dashboard while executing the fetch phase.
//
// Parameters:
//   - out: Terminal writer the dashboard renders on.
//   - names: Resource names, in display order.
//   - runFetch: Executes the fetch phase with the dashboard's reporter and
//     returns its outcome.
//
// Returns:
//   - fetch.Outcome: The fetch outcome from runFetch.
//   - error: A terminal rendering error, nil in the common case.
func Run(out io.Writer, names []string, runFetch func(fetch.ProgressReporter) fetch.Outcome) (fetch.Outcome, error) {
	program := tea.NewProgram(NewModel(names), tea.WithOutput(out))

	done := make(chan fetch.Outcome, 1)
	go func() {
		outcome := runFetch(&Reporter{program: program})
		done <- outcome
		program.Send(allDoneMsg{})
	}()

	_, err := program.Run()
	// Hiding the dashboard does not abandon the downloads: wait for the
	// fetch phase either way.
	outcome := <-done
	return outcome, err
}
