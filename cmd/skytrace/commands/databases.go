package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/query"
	"github.com/teranos/skytrace/store"
)

// DatabasesCmd pings the store and lists its database names
var DatabasesCmd = &cobra.Command{
	Use:     "databases",
	Aliases: []string{"dbs"},
	Short:   "Ping the store and list its databases",
	RunE:    runDatabases,
}

func runDatabases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.ComponentLogger("databases")

	client, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	actor := query.New(client, cfg.Query, log)
	actor.Start()
	defer actor.Stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Store.ConnectTimeout())
	defer cancel()

	names, err := actor.ListDatabases(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.Fprintln(out, pterm.Success.Sprintf("Pinged %s at %s", client.Backend(), store.Redact(cfg.Store.URI)))
	for _, name := range names {
		marker := " "
		if name == cfg.Store.Database {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, name)
	}
	return nil
}
