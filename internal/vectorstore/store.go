// Package vectorstore is the pgvector-backed persistence layer: main
// per-track embedding tables, per-engine overlay tables, and the
// overlay_meta / _migrations bookkeeping tables spec.md §6 fixes bit-exact.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/railyard/codesearch/internal/identity"
	"github.com/railyard/codesearch/internal/railerr"
)

// IVFFlatLists is the fixed `lists` parameter for every IVFFlat cosine
// index this store creates, per spec.md §6.
const IVFFlatLists = 10

// OverlayIndexThreshold is the minimum row count an overlay table needs
// before an IVFFlat index is worth creating; below it, sequential scan is
// used instead per spec.md §4.4.
const OverlayIndexThreshold = 10

// Row is one (filename, location, code, embedding) record, shared by the
// main and overlay table shapes.
type Row struct {
	Filename  string
	Location  string
	Code      string
	Embedding []float32
}

// ScoredRow is a Row with the similarity score of a nearest-neighbor query.
type ScoredRow struct {
	Row
	Score float64
}

// OverlayMeta is the overlay_meta row for one engine.
type OverlayMeta struct {
	EngineID      string
	Track         string
	Branch        string
	LastCommit    string
	FilesIndexed  int
	ChunksIndexed int
	DeletedFiles  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store wraps a pgx connection pool with the table operations the main
// indexer, overlay indexer, and search engine need.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// Open connects to Postgres and ensures the bookkeeping tables exist.
func Open(ctx context.Context, databaseURL string, dimension int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, railerr.Store(err, "parse database url")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, railerr.Store(err, "connect to database")
	}

	s := &Store{pool: pool, dimension: dimension}
	if err := s.ensureBookkeeping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureBookkeeping(ctx context.Context) error {
	const stmt = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS _migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS overlay_meta (
	engine_id TEXT PRIMARY KEY,
	track TEXT,
	branch TEXT,
	last_commit TEXT,
	files_indexed INT,
	chunks_indexed INT,
	deleted_files TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT now(),
	updated_at TIMESTAMP NOT NULL DEFAULT now()
);
`
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return railerr.Store(err, "ensure bookkeeping tables")
	}
	return nil
}

// EnsureMainTable creates the per-track main table if it doesn't already
// exist, per the bit-exact schema in spec.md §6.
func (s *Store) EnsureMainTable(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	filename TEXT NOT NULL,
	location TEXT,
	code TEXT NOT NULL,
	embedding vector(%d),
	PRIMARY KEY (filename, location)
);`, quoteIdent(table), s.dimension)

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return railerr.Store(err, "ensure main table %s", table)
	}
	return nil
}

// EnsureMainIndex creates the IVFFlat cosine index on table if it is missing.
func (s *Store) EnsureMainIndex(ctx context.Context, table string) error {
	return s.ensureIVFFlatIndex(ctx, table)
}

func (s *Store) ensureIVFFlatIndex(ctx context.Context, table string) error {
	indexName := table + "_embedding_idx"
	stmt := fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = %s
	) THEN
		EXECUTE 'CREATE INDEX %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)';
	END IF;
END
$$;`, quoteLiteral(indexName), quoteIdent(indexName), quoteIdent(table), IVFFlatLists)

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		if strings.Contains(err.Error(), "ivfflat") {
			return nil
		}
		return railerr.Store(err, "ensure ivfflat index on %s", table)
	}
	return nil
}

// UpsertMainRows inserts or updates rows in a main table, keyed by
// (filename, location). Used by the main indexer's per-file export.
func (s *Store) UpsertMainRows(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return railerr.Store(err, "begin transaction for %s", table)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(`
INSERT INTO %s (filename, location, code, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (filename, location) DO UPDATE SET code = EXCLUDED.code, embedding = EXCLUDED.embedding;`, quoteIdent(table))

	for _, row := range rows {
		if len(row.Embedding) != s.dimension {
			return railerr.Store(nil, "row %s:%s has %d dims, want %d", row.Filename, row.Location, len(row.Embedding), s.dimension)
		}
		if _, err := tx.Exec(ctx, stmt, row.Filename, row.Location, row.Code, pgvector.NewVector(row.Embedding)); err != nil {
			return railerr.Store(err, "upsert row %s:%s into %s", row.Filename, row.Location, table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return railerr.Store(err, "commit upsert into %s", table)
	}
	return nil
}

// DeleteMainRowsForFile removes every row for filename from table, used
// when the main indexer detects a file no longer matches the track.
func (s *Store) DeleteMainRowsForFile(ctx context.Context, table, filename string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE filename = $1`, quoteIdent(table))
	if _, err := s.pool.Exec(ctx, stmt, filename); err != nil {
		return railerr.Store(err, "delete rows for %s from %s", filename, table)
	}
	return nil
}

// QueryNearest returns the top `limit` rows in table ordered by cosine
// similarity to embedding descending. TableMissing is returned (not a
// generic StoreError) when the relation does not exist, so dispatcher-mode
// search can swallow it per spec.md §7.
func (s *Store) QueryNearest(ctx context.Context, table string, embedding []float32, limit int) ([]ScoredRow, error) {
	stmt := fmt.Sprintf(`
SELECT filename, location, code, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1
LIMIT $2`, quoteIdent(table))

	rows, err := s.pool.Query(ctx, stmt, pgvector.NewVector(embedding), limit)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, railerr.TableMissing(err, "table %s does not exist", table)
		}
		return nil, railerr.Store(err, "query nearest in %s", table)
	}
	defer rows.Close()

	var results []ScoredRow
	for rows.Next() {
		var r ScoredRow
		if err := rows.Scan(&r.Filename, &r.Location, &r.Code, &r.Score); err != nil {
			return nil, railerr.Store(err, "scan row from %s", table)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, railerr.Store(err, "iterate rows from %s", table)
	}
	return results, nil
}

// RebuildOverlay performs the overlay build's transactional table replace:
// create-if-missing, truncate, insert every row, conditionally index, and
// upsert the metadata row — all inside one transaction per spec.md §4.4.
func (s *Store) RebuildOverlay(ctx context.Context, engineID, tablePrefix string, rows []Row, meta OverlayMeta) error {
	table, err := identity.OverlayTableName(tablePrefix, engineID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return railerr.Store(err, "begin overlay rebuild transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createStmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	filename TEXT NOT NULL,
	location TEXT,
	code TEXT NOT NULL,
	embedding vector(%d),
	PRIMARY KEY (filename, location)
);`, quoteIdent(table), s.dimension)
	if _, err := tx.Exec(ctx, createStmt); err != nil {
		return railerr.Store(err, "create overlay table %s", table)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", quoteIdent(table))); err != nil {
		return railerr.Store(err, "truncate overlay table %s", table)
	}

	insertStmt := fmt.Sprintf(`INSERT INTO %s (filename, location, code, embedding) VALUES ($1, $2, $3, $4)`, quoteIdent(table))
	for _, row := range rows {
		if len(row.Embedding) != s.dimension {
			return railerr.Store(nil, "row %s:%s has %d dims, want %d", row.Filename, row.Location, len(row.Embedding), s.dimension)
		}
		if _, err := tx.Exec(ctx, insertStmt, row.Filename, row.Location, row.Code, pgvector.NewVector(row.Embedding)); err != nil {
			return railerr.Store(err, "insert overlay row %s:%s", row.Filename, row.Location)
		}
	}

	if len(rows) >= OverlayIndexThreshold {
		indexName := table + "_embedding_idx"
		indexStmt := fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = %s
	) THEN
		EXECUTE 'CREATE INDEX %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)';
	END IF;
END
$$;`, quoteLiteral(indexName), quoteIdent(indexName), quoteIdent(table), IVFFlatLists)
		if _, err := tx.Exec(ctx, indexStmt); err != nil && !strings.Contains(err.Error(), "ivfflat") {
			return railerr.Store(err, "create overlay index on %s", table)
		}
	}

	deletedJSON, err := json.Marshal(meta.DeletedFiles)
	if err != nil {
		return railerr.Store(err, "marshal deleted_files for %s", engineID)
	}

	metaStmt := `
INSERT INTO overlay_meta (engine_id, track, branch, last_commit, files_indexed, chunks_indexed, deleted_files, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (engine_id) DO UPDATE SET
	track = EXCLUDED.track,
	branch = EXCLUDED.branch,
	last_commit = EXCLUDED.last_commit,
	files_indexed = EXCLUDED.files_indexed,
	chunks_indexed = EXCLUDED.chunks_indexed,
	deleted_files = EXCLUDED.deleted_files,
	updated_at = now();`
	if _, err := tx.Exec(ctx, metaStmt, meta.EngineID, meta.Track, meta.Branch, meta.LastCommit, meta.FilesIndexed, meta.ChunksIndexed, string(deletedJSON)); err != nil {
		return railerr.Store(err, "upsert overlay_meta for %s", engineID)
	}

	if err := tx.Commit(ctx); err != nil {
		return railerr.Store(err, "commit overlay rebuild for %s", engineID)
	}
	return nil
}

// CleanupOverlay drops the overlay table and its metadata row, both
// idempotent, per spec.md §4.4.
func (s *Store) CleanupOverlay(ctx context.Context, engineID, tablePrefix string) error {
	table, err := identity.OverlayTableName(tablePrefix, engineID)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
		return railerr.Store(err, "drop overlay table %s", table)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM overlay_meta WHERE engine_id = $1`, engineID); err != nil {
		return railerr.Store(err, "delete overlay_meta for %s", engineID)
	}
	return nil
}

// OverlayStatus returns the overlay_meta row for engineID, or nil if absent.
func (s *Store) OverlayStatus(ctx context.Context, engineID string) (*OverlayMeta, error) {
	row := s.pool.QueryRow(ctx, `
SELECT engine_id, track, branch, last_commit, files_indexed, chunks_indexed, deleted_files, created_at, updated_at
FROM overlay_meta WHERE engine_id = $1`, engineID)

	var m OverlayMeta
	var deletedJSON string
	err := row.Scan(&m.EngineID, &m.Track, &m.Branch, &m.LastCommit, &m.FilesIndexed, &m.ChunksIndexed, &deletedJSON, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, railerr.Store(err, "select overlay_meta for %s", engineID)
	}

	m.DeletedFiles = []string{}
	if strings.TrimSpace(deletedJSON) != "" {
		if err := json.Unmarshal([]byte(deletedJSON), &m.DeletedFiles); err != nil {
			return nil, railerr.Store(err, "parse deleted_files for %s", engineID)
		}
	}
	return &m, nil
}

func isUndefinedTable(err error) bool {
	return strings.Contains(err.Error(), "SQLSTATE 42P01") || strings.Contains(err.Error(), "does not exist")
}

// quoteIdent double-quotes a SQL identifier already sanitized by the
// identity package; this is defense in depth, not the trust boundary.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
