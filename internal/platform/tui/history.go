package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/bread/internal/storage"
)

// History browser layout constants
const (
	maxHistoryRows = 200 // Max rows to load per view
	historyChrome  = 8   // Title, tabs, borders and help
)

// HistoryView selects which records the browser shows.
type HistoryView int

const (
	HistoryCommands HistoryView = iota
	HistorySessions
	historyViewCount
)

func (v HistoryView) String() string {
	if v == HistorySessions {
		return "Sessions"
	}
	return "Remote Commands"
}

// HistorySource is the storage the browser reads.
type HistorySource interface {
	RecentRemoteCommands(limit int) ([]storage.RemoteCommandRecord, error)
	RecentSessionEvents(limit int) ([]storage.SessionEvent, error)
}

// HistoryModel is the Bubble Tea model for browsing stored history.
type HistoryModel struct {
	source   HistorySource
	view     HistoryView
	rows     []table.Row
	loadErr  error
	table    table.Model
	help     help.Model
	keys     HistoryKeyMap
	width    int
	height   int
	quitting bool
}

// NewHistoryModel creates a history browser showing remote commands.
func NewHistoryModel(source HistorySource, width, height int) HistoryModel {
	h := help.New()
	h.ShowAll = false

	m := HistoryModel{
		source: source,
		keys:   DefaultHistoryKeyMap(),
		help:   h,
		width:  width,
		height: height,
	}
	m.table = m.createTable()
	m.load()
	return m
}

// createTable creates a table with columns for the current view.
func (m *HistoryModel) createTable() table.Model {
	var columns []table.Column
	flex := m.width - 40
	if flex < 20 {
		flex = 20
	}

	switch m.view {
	case HistorySessions:
		columns = []table.Column{
			{Title: "From", Width: 12},
			{Title: "To", Width: 12},
			{Title: "Address", Width: flex},
			{Title: "When", Width: 14},
		}
	default:
		columns = []table.Column{
			{Title: "Peer", Width: 22},
			{Title: "Command", Width: flex},
			{Title: "When", Width: 14},
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(3, m.height-historyChrome)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// load reads the current view from the source.
func (m *HistoryModel) load() {
	m.rows, m.loadErr = nil, nil
	if m.source == nil {
		m.table.SetRows(nil)
		return
	}

	switch m.view {
	case HistorySessions:
		events, err := m.source.RecentSessionEvents(maxHistoryRows)
		m.loadErr = err
		for _, e := range events {
			m.rows = append(m.rows, table.Row{e.FromRole, e.ToRole, e.Address, humanize.Time(e.CreatedAt)})
		}
	default:
		cmds, err := m.source.RecentRemoteCommands(maxHistoryRows)
		m.loadErr = err
		for _, c := range cmds {
			m.rows = append(m.rows, table.Row{c.Peer, c.Command, humanize.Time(c.CreatedAt)})
		}
	}

	m.table.SetRows(m.rows)
	m.table.GotoTop()
}

func (m *HistoryModel) switchView(delta int) {
	m.view = HistoryView((int(m.view) + delta + int(historyViewCount)) % int(historyViewCount))
	m.table = m.createTable()
	m.load()
}

// Init initializes the history model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the history browser.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextTab):
			m.switchView(1)
			return m, nil

		case key.Matches(msg, m.keys.PrevTab):
			m.switchView(-1)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.createTable()
		m.table.SetRows(m.rows)
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// CurrentView returns the records being shown.
func (m HistoryModel) CurrentView() HistoryView {
	return m.view
}

// Rows returns the loaded rows for the current view.
func (m HistoryModel) Rows() []table.Row {
	return m.rows
}

// IsQuitting returns true if user wants to quit.
func (m HistoryModel) IsQuitting() bool {
	return m.quitting
}

// View renders the history browser.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.MarginBottom(1).Render(centerText("HISTORY - "+m.view.String(), m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	b.WriteString(tableStyle.Render(m.renderTableContent()))

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// renderTableContent renders the table or an empty message.
func (m HistoryModel) renderTableContent() string {
	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(2, 4)

	switch {
	case m.loadErr != nil:
		return emptyStyle.Render("Failed to load history:\n" + m.loadErr.Error())
	case len(m.rows) == 0:
		return emptyStyle.Render("Nothing recorded yet.")
	}
	return m.table.View()
}

// RunHistory runs the history browser until the user quits.
func RunHistory(source HistorySource, width, height int) error {
	p := tea.NewProgram(
		NewHistoryModel(source, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
