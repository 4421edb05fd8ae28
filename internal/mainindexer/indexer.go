// Package mainindexer implements spec.md §4.3: materializing every chunk of
// a track's files as rows in main_<track>_embeddings. It is grounded on the
// teacher's scanner package for the file-walk shape, generalized from
// gitignore-aware project scanning down to the spec's plain include/exclude
// glob contract, with chunking, embedding, and upsert delegated to the
// chunk, embed, and vectorstore packages.
package mainindexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/railyard/codesearch/internal/chunk"
	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/fingerprint"
	"github.com/railyard/codesearch/internal/railerr"
	"github.com/railyard/codesearch/internal/vectorstore"
)

// Options configures one track build.
type Options struct {
	RepoPath string
	Track    string
	Table    string

	Included []string
	Excluded []string

	// Force re-exports every file unconditionally, bypassing the
	// fingerprint store's change detection.
	Force bool
}

// Result summarizes one track build, suitable for logging or JSON output.
type Result struct {
	FilesScanned  int      `json:"files_scanned"`
	FilesIndexed  int      `json:"files_indexed"`
	FilesSkipped  int      `json:"files_skipped"`
	FilesUnread   int      `json:"files_unread"`
	FilesRemoved  int      `json:"files_removed"`
	ChunksIndexed int      `json:"chunks_indexed"`
	Errors        []string `json:"errors,omitempty"`
}

// Store is the subset of vectorstore.Store the main indexer needs, narrowed
// so Build can be tested against a fake.
type Store interface {
	EnsureMainTable(ctx context.Context, table string) error
	EnsureMainIndex(ctx context.Context, table string) error
	UpsertMainRows(ctx context.Context, table string, rows []vectorstore.Row) error
	DeleteMainRowsForFile(ctx context.Context, table, filename string) error
}

var _ Store = (*vectorstore.Store)(nil)

// Fingerprints is the subset of fingerprint.Store the main indexer needs.
type Fingerprints interface {
	Changed(ctx context.Context, track, filename, contentHash string) (bool, error)
	Record(ctx context.Context, track, filename, contentHash string) error
	Forget(ctx context.Context, track, filename string) error
	KnownFiles(ctx context.Context, track string) ([]string, error)
}

var _ Fingerprints = (*fingerprint.Store)(nil)

// Indexer builds main_<track>_embeddings for one track at a time.
type Indexer struct {
	store       Store
	fingerprint Fingerprints
	embedder    embed.Embedder
	chunker     chunk.Chunker
}

// New constructs an Indexer. chunker is typically chunk.NewASTChunker for a
// track with a declared language, or chunk.NewByteChunker otherwise.
func New(store Store, fp Fingerprints, embedder embed.Embedder, chunker chunk.Chunker) *Indexer {
	return &Indexer{store: store, fingerprint: fp, embedder: embedder, chunker: chunker}
}

// Build walks opts.RepoPath, chunks and embeds every included file not
// excluded by opts.Excluded, and upserts the resulting rows into opts.Table.
// A single unreadable file is skipped and recorded in Result.Errors; a
// database failure aborts the build and is returned as the error.
func (ix *Indexer) Build(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{}

	if err := ix.store.EnsureMainTable(ctx, opts.Table); err != nil {
		return nil, err
	}

	files, err := EnumerateFiles(opts.RepoPath, opts.Included, opts.Excluded)
	if err != nil {
		return nil, railerr.Repo(err, "enumerate files under %s", opts.RepoPath)
	}
	result.FilesScanned = len(files)

	for _, relPath := range files {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := ix.indexOne(ctx, opts, relPath, result); err != nil {
			return result, err
		}
	}

	if err := ix.removeVanishedFiles(ctx, opts, files, result); err != nil {
		return result, err
	}

	if err := ix.store.EnsureMainIndex(ctx, opts.Table); err != nil {
		return nil, err
	}

	return result, nil
}

// removeVanishedFiles drops main table rows and fingerprint records for
// files that were indexed on a prior run but no longer match the track's
// current include/exclude patterns (deleted, renamed, or filtered out).
func (ix *Indexer) removeVanishedFiles(ctx context.Context, opts Options, current []string, result *Result) error {
	known, err := ix.fingerprint.KnownFiles(ctx, opts.Track)
	if err != nil {
		return railerr.Store(err, "list known files for track %s", opts.Track)
	}
	if len(known) == 0 {
		return nil
	}

	stillPresent := make(map[string]bool, len(current))
	for _, f := range current {
		stillPresent[f] = true
	}

	for _, filename := range known {
		if stillPresent[filename] {
			continue
		}
		if err := ix.store.DeleteMainRowsForFile(ctx, opts.Table, filename); err != nil {
			return err
		}
		if err := ix.fingerprint.Forget(ctx, opts.Track, filename); err != nil {
			return railerr.Store(err, "forget fingerprint for %s", filename)
		}
		result.FilesRemoved++
	}
	return nil
}

// indexOne processes a single file. It returns a non-nil error only for
// failures the caller must abort on (database failures); unreadable files
// are recorded in result and swallowed.
func (ix *Indexer) indexOne(ctx context.Context, opts Options, relPath string, result *Result) error {
	absPath := filepath.Join(opts.RepoPath, relPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		fileErr := railerr.File(err, "read %s", relPath)
		slog.Warn("mainindexer_file_unreadable", slog.String("file", relPath), slog.String("error", fileErr.Error()))
		result.FilesUnread++
		result.Errors = append(result.Errors, fileErr.Error())
		return nil
	}

	hash := fingerprint.Hash(content)

	if !opts.Force {
		changed, err := ix.fingerprint.Changed(ctx, opts.Track, relPath, hash)
		if err != nil {
			return railerr.Store(err, "check fingerprint for %s", relPath)
		}
		if !changed {
			result.FilesSkipped++
			return nil
		}
	}

	chunks, err := ix.chunker.Chunk(relPath, string(content))
	if err != nil {
		fileErr := railerr.File(err, "chunk %s", relPath)
		slog.Warn("mainindexer_file_chunk_failed", slog.String("file", relPath), slog.String("error", fileErr.Error()))
		result.FilesUnread++
		result.Errors = append(result.Errors, fileErr.Error())
		return nil
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return railerr.Store(err, "embed %d chunk(s) of %s", len(chunks), relPath)
		}

		rows := make([]vectorstore.Row, len(chunks))
		for i, c := range chunks {
			rows[i] = vectorstore.Row{
				Filename:  relPath,
				Location:  c.Location,
				Code:      c.Text,
				Embedding: vectors[i],
			}
		}

		if err := ix.store.UpsertMainRows(ctx, opts.Table, rows); err != nil {
			return err
		}
		result.ChunksIndexed += len(rows)
	}

	if err := ix.fingerprint.Record(ctx, opts.Track, relPath, hash); err != nil {
		return railerr.Store(err, "record fingerprint for %s", relPath)
	}

	result.FilesIndexed++
	return nil
}
