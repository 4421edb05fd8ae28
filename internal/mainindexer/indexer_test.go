package mainindexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railyard/codesearch/internal/chunk"
	"github.com/railyard/codesearch/internal/vectorstore"
)

type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                    { return 3 }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

type fakeStore struct {
	rows         []vectorstore.Row
	ensuredTbl   string
	indexEnsured bool
	deletedFiles []string
}

func (s *fakeStore) EnsureMainTable(ctx context.Context, table string) error {
	s.ensuredTbl = table
	return nil
}
func (s *fakeStore) EnsureMainIndex(ctx context.Context, table string) error {
	s.indexEnsured = true
	return nil
}
func (s *fakeStore) UpsertMainRows(ctx context.Context, table string, rows []vectorstore.Row) error {
	s.rows = append(s.rows, rows...)
	return nil
}
func (s *fakeStore) DeleteMainRowsForFile(ctx context.Context, table, filename string) error {
	s.deletedFiles = append(s.deletedFiles, filename)
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.Filename != filename {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

type fakeFingerprints struct {
	hashes map[string]string
	tracks map[string]bool
}

func newFakeFingerprints() *fakeFingerprints {
	return &fakeFingerprints{hashes: map[string]string{}, tracks: map[string]bool{}}
}

func (f *fakeFingerprints) key(track, filename string) string { return track + "\x00" + filename }

func (f *fakeFingerprints) Changed(ctx context.Context, track, filename, contentHash string) (bool, error) {
	return f.hashes[f.key(track, filename)] != contentHash, nil
}

func (f *fakeFingerprints) Record(ctx context.Context, track, filename, contentHash string) error {
	f.hashes[f.key(track, filename)] = contentHash
	f.tracks[track] = true
	return nil
}

func (f *fakeFingerprints) Forget(ctx context.Context, track, filename string) error {
	delete(f.hashes, f.key(track, filename))
	return nil
}

func (f *fakeFingerprints) KnownFiles(ctx context.Context, track string) ([]string, error) {
	var files []string
	prefix := track + "\x00"
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			files = append(files, strings.TrimPrefix(k, prefix))
		}
	}
	return files, nil
}

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "b.go"), []byte("package vendor\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi\n"), 0o644))
	return dir
}

func TestBuild_IndexesIncludedFilesOnly(t *testing.T) {
	dir := writeRepo(t)
	store := &fakeStore{}
	fp := newFakeFingerprints()
	embedder := &fakeEmbedder{}
	ix := New(store, fp, embedder, chunk.NewByteChunker(chunk.Options{}))

	result, err := ix.Build(context.Background(), Options{
		RepoPath: dir,
		Track:    "backend",
		Table:    "main_backend_embeddings",
		Included: []string{"*.go"},
		Excluded: []string{"vendor"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, "main_backend_embeddings", store.ensuredTbl)
	assert.True(t, store.indexEnsured)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "a.go", store.rows[0].Filename)
}

func TestBuild_SkipsUnchangedFileUnlessForced(t *testing.T) {
	dir := writeRepo(t)
	store := &fakeStore{}
	fp := newFakeFingerprints()
	embedder := &fakeEmbedder{}
	ix := New(store, fp, embedder, chunk.NewByteChunker(chunk.Options{}))
	opts := Options{RepoPath: dir, Track: "backend", Table: "t", Included: []string{"*.go"}, Excluded: []string{"vendor"}}

	first, err := ix.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FilesIndexed)

	second, err := ix.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesIndexed)
	assert.Equal(t, 1, second.FilesSkipped)

	opts.Force = true
	third, err := ix.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, third.FilesIndexed)
}

func TestBuild_RemovesRowsForVanishedFile(t *testing.T) {
	dir := writeRepo(t)
	store := &fakeStore{}
	fp := newFakeFingerprints()
	embedder := &fakeEmbedder{}
	ix := New(store, fp, embedder, chunk.NewByteChunker(chunk.Options{}))
	opts := Options{RepoPath: dir, Track: "backend", Table: "t", Included: []string{"*.go"}, Excluded: []string{"vendor"}}

	first, err := ix.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FilesIndexed)
	require.Len(t, store.rows, 1)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.go")))

	second, err := ix.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesRemoved)
	assert.Empty(t, store.rows)
	assert.Contains(t, store.deletedFiles, "a.go")
}

func TestBuild_UnreadableFileIsSkippedNotFatal(t *testing.T) {
	dir := writeRepo(t)
	require.NoError(t, os.Symlink(filepath.Join(dir, "does-not-exist.go"), filepath.Join(dir, "broken.go")))

	store := &fakeStore{}
	fp := newFakeFingerprints()
	embedder := &fakeEmbedder{}
	ix := New(store, fp, embedder, chunk.NewByteChunker(chunk.Options{}))

	result, err := ix.Build(context.Background(), Options{
		RepoPath: dir,
		Track:    "backend",
		Table:    "t",
		Included: []string{"*.go"},
		Excluded: []string{"vendor"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, 1, result.FilesUnread)
	assert.Len(t, result.Errors, 1)
}
