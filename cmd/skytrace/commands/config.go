package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/store"
)

// ConfigCmd groups configuration subcommands
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, create or check configuration",
	Long: `Manage skytrace configuration.

Sources, lowest precedence first: defaults, /etc/skytrace/config.toml,
~/.skytrace/config.toml, skytrace.toml in the working directory or a parent,
SKYTRACE_* environment variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		shown := *cfg
		shown.Store.URI = store.Redact(cfg.Store.URI)
		if path := config.ActiveFile(); path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "# from %s\n", path)
		}
		return render(cmd.OutOrStdout(), configFormat, shown)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file populated with defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return errors.WithHint(
				errors.Newf("%s already exists", path),
				"pass --force to overwrite (the old file is kept as .bak)",
			)
		}
		if err := config.Write(path, config.Default()); err != nil {
			return err
		}
		pterm.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Wrote %s", path))
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a config file and report unknown keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unknown, err := config.CheckFile(args[0])
		out := cmd.OutOrStdout()
		for _, key := range unknown {
			pterm.Fprintln(out, pterm.Warning.Sprintf("unknown key %q", key))
		}
		if err != nil {
			return err
		}
		if len(unknown) > 0 {
			return errors.Newf("%d unknown key(s) in %s", len(unknown), args[0])
		}
		pterm.Fprintln(out, pterm.Success.Sprintf("%s is valid", args[0]))
		return nil
	},
}

var (
	configForce  bool
	configFormat string
)

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", FormatTOML, "Output format: toml, json or yaml")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configCheckCmd)
}
