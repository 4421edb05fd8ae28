package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/railyard/codesearch/internal/railerr"
)

// SearchSingle implements spec.md §4.5 mode (a): query one main table.
func (e *Engine) SearchSingle(ctx context.Context, table, query string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.QueryNearest(ctx, table, vec, 2*opts.TopK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, toResult(row))
	}
	return sortAndTrim(results, opts), nil
}

// SearchDispatcher implements spec.md §4.5 mode (b): concurrently query
// every configured main table, dedup by (filename, location) keeping the
// max score, and tolerate per-table failures (notably TableMissing) by
// logging and treating that shard as empty.
func (e *Engine) SearchDispatcher(ctx context.Context, tables []string, query string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rowSets := make([][]Result, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			rows, err := e.store.QueryNearest(gctx, table, vec, 2*opts.TopK)
			if err != nil {
				slog.Warn("dispatcher_table_query_failed",
					slog.String("table", table),
					slog.String("error", err.Error()))
				return nil
			}
			results := make([]Result, 0, len(rows))
			for _, row := range rows {
				results = append(results, toResult(row))
			}
			rowSets[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := map[string]Result{}
	for _, results := range rowSets {
		for _, r := range results {
			key := rowKey(r.Filename, r.Location)
			if existing, ok := best[key]; !ok || r.Score > existing.Score {
				best[key] = r
			}
		}
	}

	merged := make([]Result, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	return sortAndTrim(merged, opts), nil
}

// SearchEngineMode implements spec.md §4.5 mode (c): main + overlay for one
// engine, with overlay rows always winning a (filename, location) collision
// and deleted_files suppressing main-table rows regardless of score.
func (e *Engine) SearchEngineMode(ctx context.Context, mainTable, overlayTable, engineID, query string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var mainRows, overlayRows []Result
	var deletedFiles []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.store.QueryNearest(gctx, mainTable, vec, 2*opts.TopK)
		if err != nil {
			return err
		}
		for _, row := range rows {
			mainRows = append(mainRows, toResult(row))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := e.store.QueryNearest(gctx, overlayTable, vec, 2*opts.TopK)
		if err != nil {
			if railerr.IsTableMissing(err) {
				return nil
			}
			return err
		}
		for _, row := range rows {
			overlayRows = append(overlayRows, toResult(row))
		}
		return nil
	})
	g.Go(func() error {
		m, err := e.store.OverlayStatus(gctx, engineID)
		if err != nil {
			return err
		}
		if m != nil {
			deletedFiles = m.DeletedFiles
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deleted := map[string]bool{}
	for _, f := range deletedFiles {
		deleted[f] = true
	}

	merged := map[string]Result{}
	for _, r := range overlayRows {
		merged[rowKey(r.Filename, r.Location)] = r
	}
	for _, r := range mainRows {
		if deleted[r.Filename] {
			continue
		}
		key := rowKey(r.Filename, r.Location)
		if _, ok := merged[key]; ok {
			continue
		}
		merged[key] = r
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	return sortAndTrim(results, opts), nil
}
