package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rocket-approval/mortgage-agent/internal/flow"
	"github.com/rocket-approval/mortgage-agent/internal/models"
)

// Conversation is the part of the engine the chat screens need.
type Conversation interface {
	Handle(ctx context.Context, threadID, input string) (*flow.State, []flow.Message, error)
	Progress(st *flow.State) (int, int)
	StepTitle(st *flow.State) string
	AwaitingSensitive(st *flow.State) bool
}

// TurnHook is called after every completed turn.
type TurnHook func(st *flow.State)

type turnDone struct {
	state    *flow.State
	messages []flow.Message
	err      error
}

// StatusUpdate carries an application status seen by the watcher.
type StatusUpdate struct {
	Status models.ApplicationStatus
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	frameStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
)

type Model struct {
	ctx      context.Context
	conv     Conversation
	state    *flow.State
	onTurn   TurnHook
	lines    []string
	status   string
	logPath  string
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	busy     bool
	width    int
	height   int
	quit     bool
}

// NewModel builds the chat screen for st, starting with the opening messages.
func NewModel(ctx context.Context, conv Conversation, st *flow.State, opening []flow.Message, onTurn TurnHook) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	in := textinput.New()
	in.Placeholder = "Type a reply and press enter"
	in.Prompt = "> "
	in.CharLimit = 256
	in.Focus()

	m := Model{
		ctx:      ctx,
		conv:     conv,
		state:    st,
		onTurn:   onTurn,
		viewport: viewport.New(80, 16),
		input:    in,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		width:    80,
		height:   24,
	}
	for _, msg := range opening {
		m.lines = append(m.lines, formatMessage(msg))
	}
	m.refresh()
	return m
}

// SetLogPath shows where logs are written while the chat runs.
func (m *Model) SetLogPath(path string) {
	m.logPath = path
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case turnDone:
		m = m.handleTurnDone(msg)

	case StatusUpdate:
		m = m.handleStatusUpdate(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	text := m.input.Value()
	m.input.Reset()

	if isExit(text) {
		m.quit = true
		return tea.Quit
	}

	shown := text
	if m.input.EchoMode == textinput.EchoPassword && text != "" {
		shown = "****"
	}
	m.lines = append(m.lines, userStyle.Render("You: ")+shown)
	m.busy = true
	m.refresh()

	return m.send(text)
}

func (m Model) send(text string) tea.Cmd {
	ctx, conv, threadID := m.ctx, m.conv, m.state.ThreadID
	return func() tea.Msg {
		st, msgs, err := conv.Handle(ctx, threadID, text)
		return turnDone{state: st, messages: msgs, err: err}
	}
}

func (m Model) handleTurnDone(msg turnDone) Model {
	m.busy = false
	if msg.err != nil {
		m.lines = append(m.lines, errorStyle.Render(fmt.Sprintf("Something went wrong: %v", msg.err)))
	}
	if msg.state != nil {
		m.state = msg.state
		if m.onTurn != nil {
			m.onTurn(msg.state)
		}
	}
	for _, reply := range msg.messages {
		m.lines = append(m.lines, formatMessage(reply))
	}

	m.input.EchoMode = textinput.EchoNormal
	if m.state != nil && m.conv.AwaitingSensitive(m.state) {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
	}
	m.refresh()
	return m
}

func (m Model) handleStatusUpdate(msg StatusUpdate) Model {
	m.status = msg.Status.Status
	m.lines = append(m.lines, systemStyle.Render(fmt.Sprintf("Application %s is now %q", msg.Status.RmLoanID, msg.Status.Status)))
	m.refresh()
	return m
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = msg.Width - 40
	if m.progress.Width < 10 {
		m.progress.Width = 10
	}
	m.input.Width = msg.Width - 6
	m.viewport.Width = msg.Width - 2
	m.viewport.Height = msg.Height - 9
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	rendered := make([]string, len(m.lines))
	for i, line := range m.lines {
		rendered[i] = wrap.Render(line)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quit {
		return "Goodbye!\n"
	}

	var s strings.Builder

	s.WriteString(headerStyle.Render("🏠 Rocket Approval"))
	s.WriteString("  ")
	s.WriteString(m.progressLine())
	s.WriteString("\n")

	s.WriteString(frameStyle.Width(m.width - 2).Render(m.viewport.View()))
	s.WriteString("\n")

	if m.busy {
		s.WriteString(m.spinner.View() + " thinking...\n")
	} else {
		s.WriteString(m.input.View() + "\n")
	}

	footer := "enter to send | esc to quit"
	if m.logPath != "" {
		footer += " | logs: " + m.logPath
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func (m Model) progressLine() string {
	if m.state == nil {
		return ""
	}

	var parts []string
	if m.state.Session.RmLoanID != "" {
		parts = append(parts, "#"+m.state.Session.RmLoanID)
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}

	current, total := m.conv.Progress(m.state)
	if title := m.conv.StepTitle(m.state); title != "" && total > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", title, m.progress.ViewAs(float64(current)/float64(total))))
	}
	return systemStyle.Render(strings.Join(parts, " | "))
}

// State returns the latest conversation state.
func (m Model) State() *flow.State {
	return m.state
}

func formatMessage(msg flow.Message) string {
	if msg.Role == flow.RoleUser {
		return userStyle.Render("You: ") + msg.Content
	}
	return assistantStyle.Render("Assistant: ") + msg.Content
}

func isExit(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}
