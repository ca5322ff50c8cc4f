package tui

import "github.com/charmbracelet/huh/spinner"

// ShowSpinner runs action behind an animated spinner. Without a TTY the
// action runs directly, so sweeps and long maintenance commands still work
// from cron.
func ShowSpinner(title string, action func()) {
	if !HasTTY {
		action()
		return
	}
	_ = spinner.New().Title(title).Action(action).Run()
}
