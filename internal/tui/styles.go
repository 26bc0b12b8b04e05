package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.ANSIColor(14)
	userColor      = lipgloss.ANSIColor(12)
	assistantColor = lipgloss.ANSIColor(13)
	errorColor     = lipgloss.ANSIColor(9)
	dimColor       = lipgloss.ANSIColor(8)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(userColor).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(assistantColor).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	viewportStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(dimColor)
)

// newRenderer uses a fixed style so glamour never queries the terminal.
func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
