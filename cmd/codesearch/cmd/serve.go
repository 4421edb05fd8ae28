package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/logging"
	"github.com/railyard/codesearch/internal/ratelimit"
	"github.com/railyard/codesearch/internal/search"
	"github.com/railyard/codesearch/internal/toolserver"
	"github.com/railyard/codesearch/internal/vectorstore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// MCP protocol requires stdout to be used EXCLUSIVELY for
			// JSON-RPC messages; route all logging to file instead.
			cleanup, err := logging.SetupMCPMode()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := toolserver.ConfigFromEnv()
			if err != nil {
				return err
			}

			embedder, err := embed.New(ctx, embed.ConfigFromEnv())
			if err != nil {
				return err
			}
			defer embedder.Close()

			store, err := vectorstore.Open(ctx, cfg.DatabaseURL, embed.Dimensions)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := search.New(store, embedder)
			limiter := ratelimit.New(toolserver.RefreshCooldown)
			refresher := toolserver.NewSubprocessRefresher(os.Args[0])

			server := toolserver.New(cfg, engine, store, limiter, refresher)
			slog.Info("toolserver_starting", slog.String("engine_id", cfg.EngineID))
			return server.Serve(ctx)
		},
	}

	return cmd
}
