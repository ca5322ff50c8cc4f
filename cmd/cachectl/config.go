package main

import (
	"fmt"
	"strconv"

	"github.com/placeloop/go-common/config"
	"github.com/placeloop/go-common/env"
	cstr "github.com/placeloop/go-common/string"
	"github.com/placeloop/go-common/sys"
	"github.com/placeloop/go-common/tui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the placeloop config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a commented config file with the default values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		log := env.NewLogger(cmd)

		if sys.Exists(path) && tui.HasTTY {
			if !tui.Ask(log, fmt.Sprintf("%s exists. Overwrite?", path), false) {
				tui.ShowWarning("aborted")
				return nil
			}
		}

		cfg := config.Default()
		if tui.HasTTY {
			if base := tui.InputWithPlaceholder(log, "Provider base URL",
				"The place-data provider endpoint.", cfg.Provider.BaseURL); base != "" {
				cfg.Provider.BaseURL = base
			}
			key := tui.Password(log, "Provider API key",
				"Stored in the config file. Leave empty to set PLACELOOP_PROVIDER_API_KEY later.")
			if key != "" {
				cfg.Provider.APIKey = cstr.MaskedString(key)
			}
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		tui.ShowSuccess("wrote %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration, env overrides applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
			if err := env.LoadEnvFile(envFile); err != nil {
				return fmt.Errorf("error loading env file: %w", err)
			}
		}
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		tui.Table([]string{"Setting", "Value"}, [][]string{
			{"provider.base_url", cfg.Provider.BaseURL},
			{"provider.api_key", cfg.Provider.APIKey.String()},
			{"provider.retention", cfg.Provider.Retention.String()},
			{"cache.storage_timeout", cfg.Cache.StorageTimeout.String()},
			{"cache.overlay", cfg.Cache.Overlay},
			{"storage.bolt_path", cfg.Storage.BoltPath},
			{"storage.sqlite_dsn", cfg.Storage.SQLiteDSN},
			{"storage.redis_url", maskedURL(cfg.Storage.RedisURL)},
			{"location.max_retry_attempts", strconv.Itoa(cfg.Location.MaxRetryAttempts)},
			{"location.retry_interval", cfg.Location.RetryInterval.String()},
			{"location.min_retry_delay", cfg.Location.MinRetryDelay.String()},
			{"location.refresh_interval", cfg.Location.RefreshInterval.String()},
			{"telemetry.log_level", cfg.Telemetry.LogLevel},
			{"telemetry.otlp_url", cfg.Telemetry.OTLPURL},
		})
		fmt.Println(tui.Muted("Values reflect the config file plus PLACELOOP_* environment overrides."))
		return nil
	},
}

// maskedURL hides credentials embedded in a connection URL. Unparseable
// values come back fully masked rather than leaking.
func maskedURL(raw string) string {
	if raw == "" {
		return ""
	}
	if masked, err := cstr.MaskURL(raw); err == nil {
		return masked
	}
	return cstr.Mask(raw)
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
