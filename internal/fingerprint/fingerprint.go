// Package fingerprint tracks a content hash per (track, filename) in a
// local, pure-Go SQLite database, so the main indexer can skip files whose
// content hasn't changed since the last run. The main indexer's own
// contract treats "only changed files are reprocessed" as something "the
// pipeline layer is responsible for" — this store is that pipeline layer.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store persists a content hash per (track, filename).
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the fingerprint database at path. An
// empty path opens an in-memory store, useful for tests and one-shot
// force-reindex runs.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create fingerprint directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	track TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	PRIMARY KEY (track, filename)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fingerprint schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the content fingerprint used to key a file's row.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether filename's content hash differs from the last
// recorded fingerprint for track (true also when no prior record exists).
func (s *Store) Changed(ctx context.Context, track, filename, contentHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM fingerprints WHERE track = ? AND filename = ?`, track, filename).Scan(&existing)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read fingerprint for %s:%s: %w", track, filename, err)
	}
	return existing != contentHash, nil
}

// Record upserts filename's content hash for track.
func (s *Store) Record(ctx context.Context, track, filename, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO fingerprints (track, filename, content_hash) VALUES (?, ?, ?)
ON CONFLICT (track, filename) DO UPDATE SET content_hash = excluded.content_hash`, track, filename, contentHash)
	if err != nil {
		return fmt.Errorf("record fingerprint for %s:%s: %w", track, filename, err)
	}
	return nil
}

// Forget removes filename's recorded fingerprint for track, used when a
// file is deleted or no longer matches the track's patterns.
func (s *Store) Forget(ctx context.Context, track, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE track = ? AND filename = ?`, track, filename); err != nil {
		return fmt.Errorf("forget fingerprint for %s:%s: %w", track, filename, err)
	}
	return nil
}

// KnownFiles returns every filename previously fingerprinted for track, so
// the main indexer can detect files that vanished since the last run.
func (s *Store) KnownFiles(ctx context.Context, track string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM fingerprints WHERE track = ?`, track)
	if err != nil {
		return nil, fmt.Errorf("list known files for %s: %w", track, err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, fmt.Errorf("scan known file for %s: %w", track, err)
		}
		files = append(files, filename)
	}
	return files, rows.Err()
}
