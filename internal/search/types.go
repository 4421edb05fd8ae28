// Package search implements the dual-table cosine search described in
// spec.md §4.5: a single main table, a concurrent multi-table dispatcher
// across tracks, or a main+overlay merge for one engine. It deliberately
// carries no lexical index, fusion, or reranking stage — the system's
// relevance signal is cosine similarity alone.
package search

import (
	"context"
	"sort"

	"github.com/railyard/codesearch/internal/embed"
	"github.com/railyard/codesearch/internal/vectorstore"
)

// DefaultTopK and DefaultMinScore mirror spec.md §4.5's defaults.
const (
	DefaultTopK      = 10
	DefaultMinScore  = 0.0
)

// Result is one ranked hit, identical in shape across all three modes.
type Result struct {
	Filename string
	Code     string
	Location string
	Score    float64
}

// Options configures a single search call.
type Options struct {
	TopK     int
	MinScore float64
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// Store is the subset of vectorstore.Store the search engine needs,
// narrowed so the engine can be tested against a fake.
type Store interface {
	QueryNearest(ctx context.Context, table string, embedding []float32, limit int) ([]vectorstore.ScoredRow, error)
	OverlayStatus(ctx context.Context, engineID string) (*vectorstore.OverlayMeta, error)
}

var _ Store = (*vectorstore.Store)(nil)

// Engine runs queries against one or more tables per the configured mode.
type Engine struct {
	store    Store
	embedder embed.Embedder
}

// New constructs an Engine.
func New(store Store, embedder embed.Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

func sortAndTrim(results []Result, opts Options) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}
	return filtered
}

func toResult(row vectorstore.ScoredRow) Result {
	return Result{Filename: row.Filename, Code: row.Code, Location: row.Location, Score: row.Score}
}

func rowKey(filename, location string) string {
	return filename + "\x00" + location
}
