package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railyard/codesearch/internal/railerr"
	"github.com/railyard/codesearch/internal/vectorstore"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int                     { return 3 }
func (fakeEmbedder) ModelName() string                   { return "fake" }
func (fakeEmbedder) Available(ctx context.Context) bool { return true }
func (fakeEmbedder) Close() error                        { return nil }

type fakeStore struct {
	tables  map[string][]vectorstore.ScoredRow
	missing map[string]bool
	meta    map[string]*vectorstore.OverlayMeta
}

func (f *fakeStore) QueryNearest(ctx context.Context, table string, embedding []float32, limit int) ([]vectorstore.ScoredRow, error) {
	if f.missing[table] {
		return nil, railerr.TableMissing(nil, "table %s missing", table)
	}
	rows := f.tables[table]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) OverlayStatus(ctx context.Context, engineID string) (*vectorstore.OverlayMeta, error) {
	return f.meta[engineID], nil
}

func TestSearchSingle(t *testing.T) {
	store := &fakeStore{tables: map[string][]vectorstore.ScoredRow{
		"main_backend_embeddings": {
			{Row: vectorstore.Row{Filename: "a.go", Location: "0:0", Code: "package a"}, Score: 0.9},
			{Row: vectorstore.Row{Filename: "b.go", Location: "0:0", Code: "package b"}, Score: 0.5},
		},
	}}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchSingle(context.Background(), "main_backend_embeddings", "package", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Filename)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestSearchSingle_MinScoreFilters(t *testing.T) {
	store := &fakeStore{tables: map[string][]vectorstore.ScoredRow{
		"t": {
			{Row: vectorstore.Row{Filename: "a.go", Location: "0:0"}, Score: 0.9},
			{Row: vectorstore.Row{Filename: "b.go", Location: "0:0"}, Score: 0.1},
		},
	}}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchSingle(context.Background(), "t", "q", Options{TopK: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Filename)
}

func TestSearchDispatcher_MergesAndDedupsByMaxScore(t *testing.T) {
	store := &fakeStore{tables: map[string][]vectorstore.ScoredRow{
		"main_backend_embeddings": {
			{Row: vectorstore.Row{Filename: "shared.go", Location: "0:0"}, Score: 0.4},
		},
		"main_frontend_embeddings": {
			{Row: vectorstore.Row{Filename: "shared.go", Location: "0:0"}, Score: 0.8},
			{Row: vectorstore.Row{Filename: "only_frontend.go", Location: "0:0"}, Score: 0.6},
		},
	}}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchDispatcher(context.Background(), []string{"main_backend_embeddings", "main_frontend_embeddings"}, "q", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "shared.go", results[0].Filename)
	assert.Equal(t, 0.8, results[0].Score)
}

func TestSearchDispatcher_SwallowsMissingTable(t *testing.T) {
	store := &fakeStore{
		tables:  map[string][]vectorstore.ScoredRow{"main_backend_embeddings": {{Row: vectorstore.Row{Filename: "a.go", Location: "0:0"}, Score: 0.5}}},
		missing: map[string]bool{"main_unbuilt_embeddings": true},
	}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchDispatcher(context.Background(), []string{"main_backend_embeddings", "main_unbuilt_embeddings"}, "q", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Filename)
}

func TestSearchEngineMode_OverlayWinsCollision(t *testing.T) {
	store := &fakeStore{
		tables: map[string][]vectorstore.ScoredRow{
			"main_backend_embeddings": {
				{Row: vectorstore.Row{Filename: "x.go", Location: "0:0", Code: "old"}, Score: 0.9},
			},
			"ovl_engine1": {
				{Row: vectorstore.Row{Filename: "x.go", Location: "0:0", Code: "new"}, Score: 0.2},
			},
		},
		meta: map[string]*vectorstore.OverlayMeta{
			"engine1": {EngineID: "engine1", DeletedFiles: []string{}},
		},
	}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchEngineMode(context.Background(), "main_backend_embeddings", "ovl_engine1", "engine1", "q", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Code)
	assert.Equal(t, 0.2, results[0].Score, "overlay wins even with a lower score")
}

func TestSearchEngineMode_DeletedFilesSuppressMainRows(t *testing.T) {
	store := &fakeStore{
		tables: map[string][]vectorstore.ScoredRow{
			"main_backend_embeddings": {
				{Row: vectorstore.Row{Filename: "gone.go", Location: "0:0"}, Score: 0.9},
				{Row: vectorstore.Row{Filename: "kept.go", Location: "0:0"}, Score: 0.8},
			},
			"ovl_engine1": {},
		},
		meta: map[string]*vectorstore.OverlayMeta{
			"engine1": {EngineID: "engine1", DeletedFiles: []string{"gone.go"}},
		},
	}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchEngineMode(context.Background(), "main_backend_embeddings", "ovl_engine1", "engine1", "q", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept.go", results[0].Filename)
}

func TestSearchEngineMode_MissingOverlayTableTreatedAsEmpty(t *testing.T) {
	store := &fakeStore{
		tables: map[string][]vectorstore.ScoredRow{
			"main_backend_embeddings": {
				{Row: vectorstore.Row{Filename: "a.go", Location: "0:0"}, Score: 0.7},
			},
		},
		missing: map[string]bool{"ovl_engine1": true},
		meta:    map[string]*vectorstore.OverlayMeta{},
	}
	e := New(store, fakeEmbedder{})

	results, err := e.SearchEngineMode(context.Background(), "main_backend_embeddings", "ovl_engine1", "engine1", "q", Options{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Filename)
}
