package main

import (
	"github.com/placeloop/go-common/tui"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired entries from every domain cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var removed int
		tui.ShowSpinner("Sweeping expired entries...", func() {
			removed = app.sweep(cmd.Context())
		})
		tui.ShowSuccess("removed %d expired entries", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
