package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/placeloop/go-common/logger"
)

var (
	okGlyphStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"})
	failGlyphStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"})
	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"})
)

func show(glyph lipgloss.Style, symbol, msg string, args ...any) {
	fmt.Println(glyph.Render(" "+symbol+" ") + messageStyle.Render(fmt.Sprintf(msg, args...)))
}

// ShowSuccess prints a checkmarked status line.
func ShowSuccess(msg string, args ...any) {
	show(okGlyphStyle, "✓", msg, args...)
}

// ShowWarning prints a crossed status line for aborted or skipped work.
func ShowWarning(msg string, args ...any) {
	show(failGlyphStyle, "✕", msg, args...)
}

// ShowError prints a failed status line.
func ShowError(msg string, args ...any) {
	show(failGlyphStyle, "⚠", msg, args...)
}

// Ask prompts for a yes/no answer, returning defaultValue when the prompt
// is dismissed. Exits through the logger when the terminal breaks.
func Ask(log logger.Logger, title string, defaultValue bool) bool {
	confirm := defaultValue
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes!").
		Negative("No").
		Value(&confirm).
		Inline(false).
		Run(); err != nil {
		log.Fatal("%s", err)
	}
	return confirm
}
