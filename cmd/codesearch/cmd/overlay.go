package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railyard/codesearch/internal/chunk"
	"github.com/railyard/codesearch/internal/config"
	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/gitdiff"
	"github.com/railyard/codesearch/internal/overlay"
	"github.com/railyard/codesearch/internal/ui"
	"github.com/railyard/codesearch/internal/vectorstore"
)

func newOverlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Build, clean up, or inspect a per-engine overlay index",
	}
	cmd.AddCommand(newOverlayBuildCmd())
	cmd.AddCommand(newOverlayCleanupCmd())
	cmd.AddCommand(newOverlayStatusCmd())
	return cmd
}

func newOverlayBuildCmd() *cobra.Command {
	var (
		engineID     string
		worktree     string
		track        string
		filePatterns []string
		databaseURL  string
		mainBranch   string
		configPath   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild one engine's overlay from its worktree diff against main",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			embedder, err := embed.New(ctx, embed.ConfigFromEnv())
			if err != nil {
				return err
			}
			defer embedder.Close()

			store, err := vectorstore.Open(ctx, databaseURL, embed.Dimensions)
			if err != nil {
				return err
			}
			defer store.Close()

			differ := gitdiff.NewDiffer(mainBranch)
			builder := overlay.New(store, differ, embedder, chunk.NewByteChunker(chunk.Options{}), cfg)

			report, err := builder.Build(ctx, overlay.BuildOptions{
				EngineID:     engineID,
				Worktree:     worktree,
				Track:        track,
				FilePatterns: filePatterns,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.OverlayBuildSummary(ui.GetStyles(false), report.Status, report.FilesIndexed, report.ChunksIndexed))
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}

	cmd.Flags().StringVar(&engineID, "engine-id", "", "Engine identity (required)")
	cmd.Flags().StringVar(&worktree, "worktree", "", "Path to the engine's worktree (required)")
	cmd.Flags().StringVar(&track, "track", "", "Track name this overlay belongs to")
	cmd.Flags().StringSliceVar(&filePatterns, "file-patterns", []string{"*"}, "Glob patterns selecting which changed files to index")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (required)")
	cmd.Flags().StringVar(&mainBranch, "main-branch", "main", "Branch the worktree is diffed against")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the optional config file (overlay_table_prefix, per-track pattern overrides)")
	_ = cmd.MarkFlagRequired("engine-id")
	_ = cmd.MarkFlagRequired("worktree")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}

func newOverlayCleanupCmd() *cobra.Command {
	var engineID, databaseURL, configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop one engine's overlay table and its overlay_meta row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := vectorstore.Open(ctx, databaseURL, embed.Dimensions)
			if err != nil {
				return err
			}
			defer store.Close()

			builder := overlay.New(store, nil, nil, nil, cfg)
			if err := builder.Cleanup(ctx, engineID); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
				"status":    "ok",
				"engine_id": engineID,
			})
		},
	}

	cmd.Flags().StringVar(&engineID, "engine-id", "", "Engine identity (required)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the optional config file (overlay_table_prefix)")
	_ = cmd.MarkFlagRequired("engine-id")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}

func newOverlayStatusCmd() *cobra.Command {
	var engineID, databaseURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report an engine's overlay build metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := vectorstore.Open(ctx, databaseURL, embed.Dimensions)
			if err != nil {
				return err
			}
			defer store.Close()

			builder := overlay.New(store, nil, nil, nil, nil)
			report, err := builder.Status(ctx, engineID)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}

	cmd.Flags().StringVar(&engineID, "engine-id", "", "Engine identity (required)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (required)")
	_ = cmd.MarkFlagRequired("engine-id")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}
