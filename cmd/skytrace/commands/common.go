// Package commands implements the skytrace CLI subcommands.
package commands

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
)

// Output formats accepted by --format
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Verbosity returns the -v count, falling back to log.verbosity when the
// flag was not given
func Verbosity(cmd *cobra.Command, cfg *config.Config) int {
	v, _ := cmd.Flags().GetCount("verbose")
	if v == 0 && cfg != nil && !cmd.Flags().Changed("verbose") {
		return cfg.Log.Verbosity
	}
	return v
}

// loadConfig loads and validates the configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects to the configured store and checks it answers
func openStore(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.Client, error) {
	client, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Store.ConnectTimeout())
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close(context.Background())
		return nil, errors.WithHint(err, "check store.uri or SKYTRACE_STORE_URI")
	}

	log.Infow("Connected to store",
		logger.FieldBackend, client.Backend(),
		logger.FieldAddress, store.Redact(cfg.Store.URI),
	)
	return client, nil
}

// render writes v in the requested format
func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(v)
	default:
		return errors.WithHint(
			errors.NewInvalidArgumentf("unknown output format %q", format),
			"use json, yaml or toml",
		)
	}
}
