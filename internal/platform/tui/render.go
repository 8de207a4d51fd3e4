package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/bread/internal/console"
)

// severityStyles maps console severities to lipgloss styles.
var severityStyles = map[console.Severity]lipgloss.Style{
	console.SeverityDefault: lipgloss.NewStyle(),
	console.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	console.SeverityGood:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	console.SeverityBad:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	console.SeverityRemote:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

// RenderEntry styles one console line by severity.
func RenderEntry(e console.Entry) string {
	style, ok := severityStyles[e.Severity]
	if !ok {
		style = severityStyles[console.SeverityDefault]
	}
	return style.Render(e.Text)
}

// RenderEntries styles lines and joins them with newlines.
func RenderEntries(entries []console.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteRune('\n')
		}
		sb.WriteString(RenderEntry(e))
	}
	return sb.String()
}

// centerText centers text within the given width.
func centerText(text string, width int) string {
	textWidth := lipgloss.Width(text)
	if textWidth >= width {
		return text
	}
	padding := (width - textWidth) / 2
	return strings.Repeat(" ", padding) + text
}
