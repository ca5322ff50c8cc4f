// Package tui holds the terminal helpers cachectl renders with. Every
// prompt and effect checks HasTTY first so piped or scripted invocations
// degrade to plain output instead of hanging on input.
package tui

import (
	"os"

	tm "github.com/buger/goterm"
	"github.com/mattn/go-isatty"
)

// HasTTY reports whether stdout is an interactive terminal. Tests flip it
// to force the non-interactive paths.
var HasTTY = isatty.IsTerminal(os.Stdout.Fd())

// ClearScreen clears the terminal and homes the cursor. No-op without a TTY
// so watch loops can run under a pipe.
func ClearScreen() {
	if !HasTTY {
		return
	}
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}
