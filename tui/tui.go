// Package tui is the interactive terminal front-end: a single conversation
// rendered as a scrolling transcript with an input line. It is presentational
// glue over the chat orchestrator.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/parley/chat"
	"github.com/papercomputeco/parley/pkg/transcript"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sourceStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// completedMsg reports the outcome of one submission cycle.
type completedMsg struct {
	turn *transcript.Turn
	err  error
}

// notificationMsg carries an orchestrator failure notification.
type notificationMsg chat.Notification

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	orch *chat.Orchestrator

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width   int
	height  int
	ready   bool
	pending bool
	notice  string
}

// New creates the chat screen over the given orchestrator.
func New(orch *chat.Orchestrator) Model {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		orch:    orch,
		input:   input,
		spinner: spin,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForNotification())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.input.Reset()
			m.notice = ""
			m.pending = true
			m.refreshViewport()
			return m, tea.Batch(m.submit(text), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sizeViewport()
		m.refreshViewport()

	case completedMsg:
		m.pending = m.orch.InFlight()
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case notificationMsg:
		m.notice = msg.Description
		return m, m.waitForNotification()

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("parley"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.pending {
		b.WriteString(m.spinner.View() + " thinking...")
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
	} else {
		b.WriteString(helpStyle.Render("enter: send • esc: quit"))
	}

	return b.String()
}

// submit runs one submission cycle off the UI goroutine.
func (m Model) submit(text string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		turn, err := orch.Submit(context.Background(), text)
		return completedMsg{turn: turn, err: err}
	}
}

// waitForNotification relays the next orchestrator notification.
func (m Model) waitForNotification() tea.Cmd {
	notifs := m.orch.Notifications()
	return func() tea.Msg {
		n, ok := <-notifs
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func (m *Model) sizeViewport() {
	// Title, input and help lines take three rows.
	height := m.height - 3
	if height < 1 {
		height = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.renderer = newRenderer(m.width)
		m.ready = true
		return
	}

	m.viewport.Width = m.width
	m.viewport.Height = height
	m.renderer = newRenderer(m.width)
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// renderTranscript formats the conversation: user turns as plain prefixed
// lines, assistant turns as rendered markdown with a source annotation.
func (m *Model) renderTranscript() string {
	var b strings.Builder

	for _, turn := range m.orch.Transcript() {
		switch turn.Role {
		case transcript.RoleUser:
			b.WriteString(userStyle.Render("You: ") + turn.Text)
			b.WriteString("\n")
		case transcript.RoleAssistant:
			b.WriteString(m.renderMarkdown(turn.Text))
			if len(turn.Sources) > 0 {
				b.WriteString(sourceStyle.Render("via " + strings.Join(turn.Sources, ", ")))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}

	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

func newRenderer(width int) *glamour.TermRenderer {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return renderer
}

// Run starts the TUI and blocks until the user quits.
func Run(orch *chat.Orchestrator) error {
	program := tea.NewProgram(New(orch), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run chat UI: %w", err)
	}
	return nil
}
