package main

import (
	"os"

	"github.com/placeloop/go-common/tui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "cachectl",
	Short:         "Inspect and maintain the PlaceLoop cache layer",
	Long:          "cachectl operates on the same cache file, keys and envelopes as the app runtime, so diagnostics and repairs happen on live data.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a placeloop config file")
	rootCmd.PersistentFlags().String("env-file", "", "env file with PLACELOOP_* overrides, loaded before the config")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().String("otlp-url", "", "OTLP endpoint for logs and traces")
	rootCmd.PersistentFlags().String("otlp-shared-secret", "", "shared secret for the OTLP endpoint")
	rootCmd.PersistentFlags().Bool("no-telemetry", false, "disable telemetry export")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		tui.ShowError("%s", err)
		os.Exit(1)
	}
}
