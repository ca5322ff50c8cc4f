package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/placeloop/go-common/logger"
)

var inputTheme = huh.ThemeBase16()

// Input prompts for a free-form value.
func Input(log logger.Logger, title string, description string) string {
	return InputWithPlaceholder(log, title, description, "")
}

// InputWithPlaceholder prompts for a value, falling back to placeholder when
// the user submits an empty line.
func InputWithPlaceholder(log logger.Logger, title string, description string, placeholder string) string {
	var value string
	if err := huh.NewInput().
		Title(title).
		Prompt("> ").
		Description(description).
		Placeholder(placeholder).
		Value(&value).
		WithTheme(inputTheme).
		Run(); err != nil {
		log.Fatal("%s", err)
	}
	if value == "" {
		return placeholder
	}
	return value
}

// Password prompts for a secret without echoing it.
func Password(log logger.Logger, title string, description string) string {
	var value string
	if err := huh.NewInput().
		Title(title).
		Prompt("> ").
		Description(description + "\n").
		EchoMode(huh.EchoModePassword).
		Value(&value).
		WithTheme(inputTheme).
		Run(); err != nil {
		log.Fatal("%s", err)
	}
	return value
}

// WaitForAnyKeyMessage blocks until any key is pressed. No-op without a TTY.
func WaitForAnyKeyMessage(message string) {
	if !HasTTY {
		return
	}
	fmt.Print(Secondary(message))
	buf := make([]byte, 1)
	os.Stdin.Read(buf)
}

// AskForConfirm prompts for a single key press and returns it, or defaultKey
// when the user just hits enter. Returns 0 when no TTY is attached.
func AskForConfirm(message string, defaultKey byte) byte {
	if !HasTTY {
		return 0
	}
	fmt.Print(Secondary(message) + " ")
	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return defaultKey
	}
	if buf[0] == '\n' || buf[0] == '\r' {
		return defaultKey
	}
	return buf[0]
}
