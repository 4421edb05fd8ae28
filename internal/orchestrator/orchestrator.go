// Package orchestrator implements spec.md §4.7: reading a track manifest
// and invoking the main indexer once per track, resolving each track's
// include/exclude patterns through the optional config file's overrides.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/railyard/codesearch/internal/config"
	"github.com/railyard/codesearch/internal/mainindexer"
)

// Indexer is the subset of *mainindexer.Indexer the orchestrator drives.
type Indexer interface {
	Build(ctx context.Context, opts mainindexer.Options) (*mainindexer.Result, error)
}

var _ Indexer = (*mainindexer.Indexer)(nil)

// Options configures one orchestrator run.
type Options struct {
	RepoPath string
	// Allow, when non-empty, restricts the run to these track names.
	Allow []string
	Force bool
}

// TrackResult pairs a track name with its build outcome. Err is set when
// the track's build failed; a failed track never blocks the others.
type TrackResult struct {
	Track  string
	Table  string
	Result *mainindexer.Result
	Err    error
}

// Orchestrator runs the main indexer across every named track in a manifest.
type Orchestrator struct {
	cfg     *config.Config
	indexer Indexer
}

// New constructs an Orchestrator. cfg supplies the main table template and
// per-track pattern overrides; indexer performs each track's build.
func New(cfg *config.Config, indexer Indexer) *Orchestrator {
	return &Orchestrator{cfg: cfg, indexer: indexer}
}

// Run builds every track in manifest matching opts.Allow (all tracks when
// Allow is empty). Each track's error is captured independently so one
// failing track does not prevent the rest from being attempted.
func (o *Orchestrator) Run(ctx context.Context, manifest *config.Manifest, opts Options) []TrackResult {
	allow := allowSet(opts.Allow)

	var results []TrackResult
	for _, track := range manifest.Tracks {
		if len(allow) > 0 && !allow[track.Name] {
			continue
		}

		table := o.cfg.MainTableName(track.Name)
		included, excluded := o.cfg.PatternsFor(track.Name, track.FilePatterns)

		res, err := o.indexer.Build(ctx, mainindexer.Options{
			RepoPath: opts.RepoPath,
			Track:    track.Name,
			Table:    table,
			Included: included,
			Excluded: excluded,
			Force:    opts.Force,
		})
		if err != nil {
			slog.Error("track_build_failed", slog.String("track", track.Name), slog.String("error", err.Error()))
		} else {
			slog.Info("track_build_complete", slog.String("track", track.Name),
				slog.Int("files_indexed", res.FilesIndexed), slog.Int("chunks_indexed", res.ChunksIndexed))
		}

		results = append(results, TrackResult{Track: track.Name, Table: table, Result: res, Err: err})
	}

	return results
}

func allowSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
