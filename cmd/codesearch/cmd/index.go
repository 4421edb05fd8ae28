package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railyard/codesearch/internal/chunk"
	"github.com/railyard/codesearch/internal/config"
	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/fingerprint"
	"github.com/railyard/codesearch/internal/mainindexer"
	"github.com/railyard/codesearch/internal/orchestrator"
	"github.com/railyard/codesearch/internal/ui"
	"github.com/railyard/codesearch/internal/vectorstore"
)

func newIndexCmd() *cobra.Command {
	var (
		manifestPath    string
		configPath      string
		databaseURL     string
		fingerprintPath string
		tracks          []string
		force           bool
		noColor         bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index every track in the manifest into its main_<track>_embeddings table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath := "."
			if len(args) > 0 {
				repoPath = args[0]
			}

			manifest, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			embedder, err := embed.New(ctx, embed.ConfigFromEnv())
			if err != nil {
				return fmt.Errorf("construct embedder: %w", err)
			}
			defer embedder.Close()

			store, err := vectorstore.Open(ctx, databaseURL, embed.Dimensions)
			if err != nil {
				return err
			}
			defer store.Close()

			fp, err := fingerprint.Open(fingerprintPath)
			if err != nil {
				return fmt.Errorf("open fingerprint store: %w", err)
			}
			defer fp.Close()

			chunker := chunk.NewASTChunker(chunk.Options{})
			defer chunker.Close()

			indexer := mainindexer.New(store, fp, embedder, chunker)
			o := orchestrator.New(cfg, indexer)

			results := o.Run(ctx, manifest, orchestrator.Options{
				RepoPath: repoPath,
				Allow:    tracks,
				Force:    force,
			})

			styles := ui.GetStyles(noColor)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				out := map[string]any{"track": r.Track, "table": r.Table}
				if r.Err != nil {
					out["status"] = "error"
					out["error"] = r.Err.Error()
					fmt.Fprintln(cmd.ErrOrStderr(), ui.TrackSummary(styles, r.Track, 0, 0, r.Err))
				} else {
					out["status"] = "ok"
					out["result"] = r.Result
					fmt.Fprintln(cmd.ErrOrStderr(), ui.TrackSummary(styles, r.Track, r.Result.FilesIndexed, r.Result.ChunksIndexed, nil))
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}

			for _, r := range results {
				if r.Err != nil {
					return fmt.Errorf("track %q failed: %w", r.Track, r.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "tracks.yaml", "Path to the track manifest")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the optional config file")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	cmd.Flags().StringVar(&fingerprintPath, "fingerprint-db", "", "Path to the fingerprint sqlite file (in-memory if empty)")
	cmd.Flags().StringSliceVar(&tracks, "track", nil, "Restrict the run to these track names (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Reindex every file regardless of fingerprint state")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colorized summary output")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}
