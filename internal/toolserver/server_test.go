package toolserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railyard/codesearch/internal/overlay"
	"github.com/railyard/codesearch/internal/ratelimit"
	"github.com/railyard/codesearch/internal/search"
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
func (fakeEmbedder) Dimensions() int                    { return 3 }
func (fakeEmbedder) ModelName() string                  { return "fake" }
func (fakeEmbedder) Available(ctx context.Context) bool { return true }
func (fakeEmbedder) Close() error                       { return nil }

type fakeStore struct {
	rows map[string][]vectorstore.ScoredRow
	meta map[string]*vectorstore.OverlayMeta
}

func (f *fakeStore) QueryNearest(ctx context.Context, table string, embedding []float32, limit int) ([]vectorstore.ScoredRow, error) {
	return f.rows[table], nil
}
func (f *fakeStore) OverlayStatus(ctx context.Context, engineID string) (*vectorstore.OverlayMeta, error) {
	return f.meta[engineID], nil
}

type fakeRefresher struct {
	report *overlay.BuildReport
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, cfg Config) (*overlay.BuildReport, int64, error) {
	return f.report, 42, f.err
}

func TestHandleSearchCode_SingleMode(t *testing.T) {
	store := &fakeStore{rows: map[string][]vectorstore.ScoredRow{
		"main_backend_embeddings": {{Row: vectorstore.Row{Filename: "a.go"}, Score: 0.9}},
	}}
	engine := search.New(store, fakeEmbedder{})
	cfg := Config{MainTables: []string{"main_backend_embeddings"}}
	s := New(cfg, engine, store, ratelimit.New(30*time.Second), &fakeRefresher{})

	_, out, err := s.handleSearchCode(context.Background(), nil, SearchCodeInput{Query: "q"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a.go", out.Results[0].Filename)
}

func TestHandleSearchCode_RequiresQuery(t *testing.T) {
	s := New(Config{}, search.New(&fakeStore{}, fakeEmbedder{}), &fakeStore{}, ratelimit.New(30*time.Second), &fakeRefresher{})
	_, _, err := s.handleSearchCode(context.Background(), nil, SearchCodeInput{})
	assert.Error(t, err)
}

func TestHandleOverlayStatus_NoEngineID(t *testing.T) {
	s := New(Config{}, search.New(&fakeStore{}, fakeEmbedder{}), &fakeStore{}, ratelimit.New(30*time.Second), &fakeRefresher{})
	_, out, err := s.handleOverlayStatus(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "no_engine_id", out.Status)
}

func TestHandleOverlayStatus_NotFound(t *testing.T) {
	store := &fakeStore{meta: map[string]*vectorstore.OverlayMeta{}}
	cfg := Config{EngineID: "e1"}
	s := New(cfg, search.New(store, fakeEmbedder{}), store, ratelimit.New(30*time.Second), &fakeRefresher{})
	_, out, err := s.handleOverlayStatus(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "not_found", out.Status)
}

func TestHandleOverlayRefresh_RateLimited(t *testing.T) {
	cfg := Config{EngineID: "e1"}
	store := &fakeStore{}
	refresher := &fakeRefresher{report: &overlay.BuildReport{Status: "ok", FilesIndexed: 1, ChunksIndexed: 2}}
	s := New(cfg, search.New(store, fakeEmbedder{}), store, ratelimit.New(30*time.Second), refresher)

	_, first, err := s.handleOverlayRefresh(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "ok", first.Status)

	_, second, err := s.handleOverlayRefresh(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "rate_limited", second.Status)
	assert.Greater(t, second.RetryAfterSec, 0)
}

func TestHandleOverlayRefresh_SubprocessErrorReported(t *testing.T) {
	cfg := Config{EngineID: "e1"}
	store := &fakeStore{}
	refresher := &fakeRefresher{err: errors.New("boom")}
	s := New(cfg, search.New(store, fakeEmbedder{}), store, ratelimit.New(30*time.Second), refresher)

	_, out, err := s.handleOverlayRefresh(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, "boom", out.Message)
	assert.Equal(t, int64(42), out.DurationMS)
}

func TestHandleOverlayRefresh_NoEngineID(t *testing.T) {
	store := &fakeStore{}
	s := New(Config{}, search.New(store, fakeEmbedder{}), store, ratelimit.New(30*time.Second), &fakeRefresher{})
	_, out, err := s.handleOverlayRefresh(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "error", out.Status)
}
