package main

import (
	"fmt"

	"github.com/placeloop/go-common/tui"
	"github.com/spf13/cobra"
)

var clearUserCmd = &cobra.Command{
	Use:   "clear-user <owner-id>",
	Short: "Remove every cached entry belonging to one user",
	Long:  "The sign-out path: drops the user's details, search results, collections and cached position. Shared provider records are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := args[0]

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		force, _ := cmd.Flags().GetBool("force")
		if !force && tui.HasTTY {
			if !tui.Ask(app.log, fmt.Sprintf("Remove all cached data for %s?", owner), false) {
				tui.ShowWarning("aborted")
				return nil
			}
		}

		app.coord.ClearAllForUser(cmd.Context(), owner)
		tui.ShowSuccess("cleared cached data for %s", owner)
		return nil
	},
}

func init() {
	clearUserCmd.Flags().Bool("force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearUserCmd)
}
