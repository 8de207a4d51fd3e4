package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/bread/internal/console"
)

// Console layout constants
const (
	chromeHeight  = 4  // Title, status, input and help rows
	pollRate      = 10 // Engine state checks per second
	maxInputChars = 255
	maxHistory    = 100 // Remembered input lines
)

// Engine is the part of the engine the console screen drives.
type Engine interface {
	Submit(line string)
	Console() *console.Console
	Quitting() bool
}

// entryMsg carries one console line from the listener.
type entryMsg console.Entry

// listenerClosedMsg is sent once the listener stops delivering.
type listenerClosedMsg struct{}

// ConsoleModel is the Bubble Tea model for the developer console.
// Lines typed here run on the engine goroutine at its next frame.
type ConsoleModel struct {
	engine   Engine
	listener *console.Listener
	title    string

	entries  []console.Entry
	input    textinput.Model
	viewport viewport.Model
	help     help.Model
	keys     ConsoleKeyMap

	history []string
	histPos int // len(history) when not browsing

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewConsoleModel creates a console screen attached to engine.
func NewConsoleModel(engine Engine, title string) ConsoleModel {
	backlog, listener := engine.Console().SubscribeWithBacklog(console.DefaultListenerBuffer)

	ti := textinput.New()
	ti.Prompt = promptStyle.Render("> ")
	ti.Placeholder = "type a command, 'help' lists them"
	ti.CharLimit = maxInputChars
	ti.Focus()

	h := help.New()
	h.ShowAll = false

	return ConsoleModel{
		engine:   engine,
		listener: listener,
		title:    title,
		entries:  backlog,
		input:    ti,
		help:     h,
		keys:     DefaultConsoleKeyMap(),
	}
}

// Init starts the cursor blink, the listener pump and the quit poll.
func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEntry(m.listener),
		tickCmd(pollRate),
	)
}

// waitForEntry blocks until the listener delivers a line or closes.
func waitForEntry(l *console.Listener) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-l.Entries():
			return entryMsg(e)
		case <-l.Done():
			return listenerClosedMsg{}
		}
	}
}

// Update handles messages for the console.
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()

		case key.Matches(msg, m.keys.Submit):
			m.submit()
			return m, nil

		case key.Matches(msg, m.keys.Prev):
			m.browse(-1)
			return m, nil

		case key.Matches(msg, m.keys.Next):
			m.browse(1)
			return m, nil

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil

		case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case entryMsg:
		m.appendEntry(console.Entry(msg))
		return m, waitForEntry(m.listener)

	case listenerClosedMsg:
		return m, nil

	case TickMsg:
		if m.engine.Quitting() {
			return m.quit()
		}
		return m, tickCmd(pollRate)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConsoleModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.engine.Console().Unsubscribe(m.listener)
	return m, tea.Quit
}

// submit hands the input line to the engine.
func (m *ConsoleModel) submit() {
	line := m.input.Value()
	m.input.Reset()
	if strings.TrimSpace(line) == "" {
		return
	}

	m.engine.Submit(line)
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	m.histPos = len(m.history)
}

// browse moves through previously submitted lines.
func (m *ConsoleModel) browse(delta int) {
	if len(m.history) == 0 {
		return
	}
	pos := m.histPos + delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.history) {
		m.histPos = len(m.history)
		m.input.Reset()
		return
	}
	m.histPos = pos
	m.input.SetValue(m.history[pos])
	m.input.CursorEnd()
}

func (m *ConsoleModel) appendEntry(e console.Entry) {
	if e.Cleared {
		m.entries = nil
	} else {
		m.entries = append(m.entries, e)
		if over := len(m.entries) - console.DefaultMaxLogs; over > 0 {
			m.entries = append(m.entries[:0:0], m.entries[over:]...)
		}
	}
	m.refresh()
}

func (m *ConsoleModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width
	m.input.Width = width - lipgloss.Width(m.input.Prompt) - 1

	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refresh()
}

// refresh re-renders the log and follows the tail unless scrolled back.
func (m *ConsoleModel) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(RenderEntries(m.entries))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Lines returns the plain text of the displayed lines.
func (m ConsoleModel) Lines() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Text
	}
	return out
}

// History returns the submitted lines, oldest first.
func (m ConsoleModel) History() []string {
	return append([]string(nil), m.history...)
}

// Input returns the current input line.
func (m ConsoleModel) Input() string {
	return m.input.Value()
}

// IsQuitting returns true if the screen is closing.
func (m ConsoleModel) IsQuitting() bool {
	return m.quitting
}

// View renders the console.
func (m ConsoleModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading console..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(centerText(m.title, m.width)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m ConsoleModel) status() string {
	pct := fmt.Sprintf(" %3.f%%", m.viewport.ScrollPercent()*100)
	return strings.Repeat("─", max(0, m.width-lipgloss.Width(pct))) + pct
}
