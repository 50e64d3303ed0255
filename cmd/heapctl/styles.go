package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	successColor = lipgloss.Color("#04B575")
	errorColor   = lipgloss.Color("#FF4B4B")
	mutedColor   = lipgloss.Color("#666666")

	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	badStyle    = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// paint renders s with style unless --no-color is set. lipgloss itself drops
// colors when stdout is not a terminal.
func paint(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}
