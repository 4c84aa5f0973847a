package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, cfg *config.Config, backend string) {
	info := version.Get()

	pterm.DefaultHeader.WithFullWidth(false).Println("skytrace")

	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Listen", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)},
		{"Store", fmt.Sprintf("%s %s", backend, store.Redact(cfg.Store.URI))},
		{"Collection", cfg.Store.Database + "." + cfg.Store.Collection},
		{"Verbosity", logger.LevelName(verbosity)},
	}
	if path := config.ActiveFile(); path != "" {
		rows = append(rows, []string{"Config", path})
	}
	_ = pterm.DefaultTable.WithData(rows).Render()

	pterm.Info.Printf("Streaming on ws://%s:%d/ws\n", cfg.Server.Host, cfg.Server.Port)
	pterm.Info.Println("Press Ctrl+C to stop")
}
