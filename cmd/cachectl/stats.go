package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	cstr "github.com/placeloop/go-common/string"
	"github.com/placeloop/go-common/sys"
	"github.com/placeloop/go-common/tui"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and ages for every domain cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Println(cstr.JSONStringify(app.coord.Stats(cmd.Context()), true))
			return nil
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			renderStats(cmd.Context(), app)
			return nil
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		shutdown := sys.CreateShutdownChannel()
		for {
			tui.ClearScreen()
			fmt.Println(tui.Title("PlaceLoop cache stats"))
			renderStats(cmd.Context(), app)
			select {
			case <-shutdown:
				return nil
			case <-cmd.Context().Done():
				return nil
			case <-time.After(interval):
			}
		}
	},
}

func renderStats(ctx context.Context, a *app) {
	stats := a.coord.Stats(ctx)
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		oldest := "-"
		if st.Entries > 0 {
			oldest = st.OldestAge.Round(time.Second).String()
		}
		rows = append(rows, []string{st.Name, strconv.Itoa(st.Entries), oldest})
	}
	tui.Table([]string{"Cache", "Entries", "Oldest"}, rows)

	if usage, err := disk.Usage(filepath.Dir(a.cfg.Storage.BoltPath)); err == nil {
		fmt.Println(tui.Muted(fmt.Sprintf("store volume: %d MiB free (%.0f%% used)", usage.Free>>20, usage.UsedPercent)))
	}
}

func init() {
	statsCmd.Flags().Bool("watch", false, "refresh the table until interrupted")
	statsCmd.Flags().Duration("interval", 2*time.Second, "refresh interval for --watch")
	statsCmd.Flags().Bool("json", false, "print stats as JSON instead of a table")
	rootCmd.AddCommand(statsCmd)
}
