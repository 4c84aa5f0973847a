package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/query"
	"github.com/teranos/skytrace/server"
)

// ServerCmd starts the skytrace server
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the HTTP/WebSocket server",
	Long: `Connect to the configured store, start the query actor and serve
/ws, /api/query, /test, /health and /metrics until interrupted.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
)

func init() {
	ServerCmd.Flags().StringVar(&serverHost, "host", "", "Listen host (overrides server.host)")
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Listen port (overrides server.port)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	verbosity := Verbosity(cmd, cfg)
	cfg.Log.Verbosity = verbosity

	log := logger.ComponentLogger("server")

	// A store that cannot be reached at startup is fatal
	client, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return errors.Wrap(err, "store unavailable at startup")
	}
	defer client.Close(context.Background())

	actor := query.New(client, cfg.Query, logger.ComponentLogger("query"))
	actor.Start()
	defer actor.Stop()

	// Startup diagnostics: which databases the store exposes
	diagCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Store.ConnectTimeout())
	names, err := actor.ListDatabases(diagCtx)
	cancel()
	if err != nil {
		log.Warnw("Could not list databases", logger.FieldError, err)
	} else if logger.ShouldOutput(verbosity, logger.OutputStartup) {
		log.Infow("Store databases", logger.FieldDatabase, names)
	}

	srv, err := server.New(cfg, actor, client, log)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	if path := config.ActiveFile(); path != "" {
		watchConfig(path, srv)
	}

	printStartupBanner(verbosity, cfg, client.Backend())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout()+time.Second)
			defer cancel()
			shutdownDone <- srv.Stop(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// watchConfig applies log.verbosity changes without a restart
func watchConfig(path string, srv *server.Server) {
	log := logger.ComponentLogger("config")
	watcher, err := config.NewConfigWatcher(path, log)
	if err != nil {
		log.Warnw("Config hot reload disabled", logger.FieldError, err)
		return
	}
	watcher.OnReload(func(cfg *config.Config) error {
		logger.SetVerbosity(cfg.Log.Verbosity)
		srv.SetVerbosity(cfg.Log.Verbosity)
		log.Infow("Applied log verbosity", "verbosity", cfg.Log.Verbosity)
		return nil
	})
	watcher.Start()
}
