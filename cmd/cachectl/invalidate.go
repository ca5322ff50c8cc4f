package main

import (
	"fmt"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/tui"
	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <entity-type> <entity-id>",
	Short: "Purge every cached copy of one entity across all domains",
	Long:  "Purges the entity from every domain cache, search listings that contain it included. The next read refetches from the source of truth.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, entityID := args[0], args[1]
		switch entityType {
		case cache.EntityPlace, cache.EntityCollection:
		default:
			return fmt.Errorf("unknown entity type %q (want %s or %s)", entityType, cache.EntityPlace, cache.EntityCollection)
		}

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		app.coord.Invalidate(cmd.Context(), entityType, entityID)
		tui.ShowSuccess("invalidated %s %s", entityType, entityID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}
