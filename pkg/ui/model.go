// Package ui renders join progress and results in the terminal.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxBarWidth = 60

// ProgressMsg carries one progress report of the running join.
type ProgressMsg struct {
	Fraction float64
	Message  string
}

// DoneMsg ends the program once the join has returned.
type DoneMsg struct {
	Err error
}

// Model is the progress view of one join.
type Model struct {
	title   string
	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	cancel  context.CancelFunc

	width     int
	fraction  float64
	message   string
	started   time.Time
	elapsed   time.Duration
	done      bool
	canceling bool
	showHelp  bool
	err       error
}

// NewModel returns the view. cancel is called when the user asks to stop.
func NewModel(title string, cancel context.CancelFunc) Model {
	from, to := palette.ProgressGradient()
	bar := progress.New(progress.WithGradient(from, to))
	bar.Width = maxBarWidth

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		title:   title,
		bar:     bar,
		spinner: sp,
		help:    help.New(),
		keys:    keys,
		cancel:  cancel,
		message: "starting",
		started: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-8, 10), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			if !m.canceling && m.cancel != nil {
				m.canceling = true
				m.message = "canceling"
				m.cancel()
			}
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		}
		return m, nil

	case ProgressMsg:
		m.fraction = msg.Fraction
		if !m.canceling {
			m.message = msg.Message
		}
		return m, m.bar.SetPercent(msg.Fraction)

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.elapsed = time.Since(m.started)
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var sections []string
	sections = append(sections, titleStyle.Render(m.title))

	switch {
	case m.done && m.err != nil:
		sections = append(sections, errorStyle.Render(" FAILED ")+" "+
			lipgloss.NewStyle().Foreground(errorColor).Render(m.err.Error()))
	case m.done:
		sections = append(sections, successStyle.Render(" DONE ")+" "+
			statusStyle.Render(fmt.Sprintf("in %v", m.elapsed.Round(time.Millisecond))))
	default:
		status := lipgloss.JoinHorizontal(lipgloss.Left,
			m.spinner.View(), " ",
			badgeStyle.Render(fmt.Sprintf("%3.0f%%", m.fraction*100)),
			statusStyle.Render(m.message))
		sections = append(sections, status, m.bar.View())
		if m.showHelp {
			sections = append(sections, m.help.FullHelpView(m.keys.FullHelp()))
		} else {
			sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
		}
	}
	return appStyle.Render(strings.Join(sections, "\n"))
}

// Err is the join error delivered by DoneMsg.
func (m Model) Err() error { return m.err }

// Done reports whether DoneMsg was received.
func (m Model) Done() bool { return m.done }
