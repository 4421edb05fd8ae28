// Package overlay implements the build/cleanup/status operations of
// spec.md §4.4: a per-engine, per-track snapshot of in-flight worktree
// changes, rebuilt as one atomic table replace and consumed by search
// engine-mode as the layer that sits on top of the main table.
package overlay

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/railyard/codesearch/internal/chunk"
	"github.com/railyard/codesearch/internal/config"
	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/railerr"
	"github.com/railyard/codesearch/internal/vectorstore"
)

// Differ is the subset of gitdiff.Differ the overlay builder needs.
type Differ interface {
	ChangedFiles(ctx context.Context, worktree string) ([]string, error)
	DeletedFiles(ctx context.Context, worktree string) ([]string, error)
	HeadCommit(ctx context.Context, worktree string) (string, error)
	Branch(ctx context.Context, worktree string) string
}

// Store is the subset of vectorstore.Store the overlay builder needs.
type Store interface {
	RebuildOverlay(ctx context.Context, engineID, tablePrefix string, rows []vectorstore.Row, meta vectorstore.OverlayMeta) error
	CleanupOverlay(ctx context.Context, engineID, tablePrefix string) error
	OverlayStatus(ctx context.Context, engineID string) (*vectorstore.OverlayMeta, error)
}

var _ Store = (*vectorstore.Store)(nil)

// BuildOptions configures one overlay build.
type BuildOptions struct {
	EngineID     string
	Worktree     string
	Track        string
	FilePatterns []string
}

// BuildReport is the JSON object the build operation emits on stdout; it is
// the IPC surface the tool server's subprocess call consumes.
type BuildReport struct {
	Status        string   `json:"status"`
	EngineID      string   `json:"engine_id"`
	Track         string   `json:"track"`
	Branch        string   `json:"branch,omitempty"`
	LastCommit    string   `json:"last_commit,omitempty"`
	FilesIndexed  int      `json:"files_indexed"`
	ChunksIndexed int      `json:"chunks_indexed"`
	DeletedFiles  []string `json:"deleted_files"`
}

// Builder runs overlay build/cleanup/status against one database.
type Builder struct {
	store    Store
	differ   Differ
	embedder embed.Embedder
	chunker  chunk.Chunker
	cfg      *config.Config
}

// New constructs a Builder. The overlay indexer always uses the byte
// chunker (spec.md §9's accepted main/overlay chunking asymmetry), so
// chunker is typically chunk.NewByteChunker. cfg supplies the track's
// pattern overrides and the overlay_table_prefix (spec.md §6); Cleanup and
// Status don't read patterns, but Cleanup still needs cfg for the table
// prefix, so a nil cfg falls back to config.Default().
func New(store Store, differ Differ, embedder embed.Embedder, chunker chunk.Chunker, cfg *config.Config) *Builder {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Builder{store: store, differ: differ, embedder: embedder, chunker: chunker, cfg: cfg}
}

// Build runs the five-step algorithm of spec.md §4.4: diff, filter,
// short-circuit on no changes, read+chunk+embed survivors, and a
// transactional rebuild of the overlay table and its metadata row.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	changed, err := b.differ.ChangedFiles(ctx, opts.Worktree)
	if err != nil {
		return nil, railerr.Repo(err, "diff changed files for %s", opts.EngineID)
	}
	deleted, err := b.differ.DeletedFiles(ctx, opts.Worktree)
	if err != nil {
		return nil, railerr.Repo(err, "diff deleted files for %s", opts.EngineID)
	}

	included, excluded := b.cfg.PatternsFor(opts.Track, opts.FilePatterns)
	changed = filterByPatterns(changed, included, excluded)
	deleted = filterByPatterns(deleted, included, excluded)

	if len(changed) == 0 && len(deleted) == 0 {
		return &BuildReport{
			Status:       "no_changes",
			EngineID:     opts.EngineID,
			Track:        opts.Track,
			DeletedFiles: []string{},
		}, nil
	}

	var rows []vectorstore.Row
	var chunksIndexed, filesIndexed int

	for _, relPath := range changed {
		absPath := filepath.Join(opts.Worktree, relPath)
		data, err := os.ReadFile(absPath)
		if os.IsNotExist(err) {
			// Changed-then-deleted-before-build races show up here; the
			// deleted list already accounts for genuine deletions.
			continue
		}
		if err != nil {
			// Unreadable files are skipped and not counted in FilesIndexed.
			continue
		}

		text := strings.ToValidUTF8(string(data), "�")
		chunks, err := b.chunker.Chunk(relPath, text)
		if err != nil {
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, railerr.Store(err, "embed %d chunk(s) of %s", len(chunks), relPath)
		}

		for i, c := range chunks {
			rows = append(rows, vectorstore.Row{
				Filename:  relPath,
				Location:  c.Location,
				Code:      c.Text,
				Embedding: vectors[i],
			})
		}
		chunksIndexed += len(chunks)
		filesIndexed++
	}

	branch := b.differ.Branch(ctx, opts.Worktree)
	commit, err := b.differ.HeadCommit(ctx, opts.Worktree)
	if err != nil {
		return nil, railerr.Repo(err, "resolve HEAD commit for %s", opts.EngineID)
	}

	meta := vectorstore.OverlayMeta{
		EngineID:      opts.EngineID,
		Track:         opts.Track,
		Branch:        branch,
		LastCommit:    commit,
		FilesIndexed:  filesIndexed,
		ChunksIndexed: chunksIndexed,
		DeletedFiles:  deleted,
	}
	if meta.DeletedFiles == nil {
		meta.DeletedFiles = []string{}
	}

	if err := b.store.RebuildOverlay(ctx, opts.EngineID, b.cfg.OverlayTablePrefix, rows, meta); err != nil {
		return nil, err
	}

	return &BuildReport{
		Status:        "ok",
		EngineID:      opts.EngineID,
		Track:         opts.Track,
		Branch:        branch,
		LastCommit:    commit,
		FilesIndexed:  filesIndexed,
		ChunksIndexed: chunksIndexed,
		DeletedFiles:  meta.DeletedFiles,
	}, nil
}

// Cleanup drops the overlay table and its metadata row.
func (b *Builder) Cleanup(ctx context.Context, engineID string) error {
	return b.store.CleanupOverlay(ctx, engineID, b.cfg.OverlayTablePrefix)
}

// StatusReport is the JSON object the status operation emits.
type StatusReport struct {
	Status        string   `json:"status"`
	EngineID      string   `json:"engine_id"`
	Track         string   `json:"track,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	LastCommit    string   `json:"last_commit,omitempty"`
	FilesIndexed  int      `json:"files_indexed,omitempty"`
	ChunksIndexed int      `json:"chunks_indexed,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
}

// Status reports the overlay's current metadata, or status=not_found if no
// overlay has ever been built for engineID.
func (b *Builder) Status(ctx context.Context, engineID string) (*StatusReport, error) {
	meta, err := b.store.OverlayStatus(ctx, engineID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return &StatusReport{Status: "not_found", EngineID: engineID}, nil
	}
	return &StatusReport{
		Status:        "ok",
		EngineID:      meta.EngineID,
		Track:         meta.Track,
		Branch:        meta.Branch,
		LastCommit:    meta.LastCommit,
		FilesIndexed:  meta.FilesIndexed,
		ChunksIndexed: meta.ChunksIndexed,
		DeletedFiles:  meta.DeletedFiles,
	}, nil
}

// filterByPatterns keeps paths whose base name or full relative path matches
// at least one included glob (an empty included set matches everything) and drops any
// path with a component matching an excluded glob, mirroring
// mainindexer.EnumerateFiles's matching rules so overlay and main builds
// apply a track's patterns the same way.
func filterByPatterns(paths, included, excluded []string) []string {
	var kept []string
	for _, p := range paths {
		if matchesAnyComponent(p, excluded) {
			continue
		}
		if !matchesIncluded(p, included) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func matchesAnyComponent(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

func matchesIncluded(relPath string, included []string) bool {
	if len(included) == 0 {
		return true
	}
	base := filepath.Base(relPath)
	for _, pattern := range included {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}
