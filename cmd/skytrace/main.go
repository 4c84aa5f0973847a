package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/skytrace/cmd/skytrace/commands"
	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/logger"

	// Store backends register their URI schemes in init
	_ "github.com/teranos/skytrace/store/mongostore"
	_ "github.com/teranos/skytrace/store/sqlitestore"
)

var rootCmd = &cobra.Command{
	Use:   "skytrace",
	Short: "skytrace - aircraft telemetry streaming service",
	Long: `skytrace - aircraft telemetry streaming service.

skytrace serves stored ASTERIX surveillance samples by time range and keeps
streaming WebSocket sessions open for live clients.

Available commands:
  server    - Start the HTTP/WebSocket server
  query     - Run a one-shot time range query
  databases - Ping the store and list its databases
  config    - Show, create or check configuration
  version   - Show version information

Examples:
  skytrace server -v
  skytrace query --start 2022-11-03T12:57:18.123Z --end 2022-11-03T12:57:20.123Z
  skytrace databases
  skytrace config check ~/.skytrace/config.toml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			config.SetConfigFile(path)
		}

		cfg, err := config.Load()
		if err != nil {
			// The logger is still needed to report the failure; commands
			// that need config will return the same error
			return logger.Initialize(false, commands.Verbosity(cmd, nil))
		}
		return logger.Initialize(cfg.Log.JSON, commands.Verbosity(cmd, cfg))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().String("config", "", "Config file to use instead of the standard locations")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.DatabasesCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
