package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"})
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#214358", Dark: "#AEB8C4"})
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
)

// Title renders a bold heading.
func Title(text string) string {
	return titleStyle.Render(text)
}

// Secondary renders de-emphasized body text.
func Secondary(text string) string {
	return secondaryStyle.Render(text)
}

// Muted renders low-priority hints and footers.
func Muted(text string) string {
	return mutedStyle.Render(text)
}
