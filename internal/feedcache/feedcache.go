// Package feedcache stores conditional-GET validators (ETag / Last-Modified)
// per feed URL in a small local SQLite database, so the scheduler can send
// If-None-Match / If-Modified-Since on the next fetch and skip re-parsing
// unchanged feeds. Grounded on the teacher's internal/store package, which
// uses the same sql.Open("sqlite3", ...) + CREATE TABLE IF NOT EXISTS
// pattern for its local cache.
package feedcache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed conditional-GET validator cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if needed) dataDir and the cache database inside it.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating feedcache data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "feedcache.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening feedcache database: %w", err)
	}
	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing feedcache database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feed_validators (
			feed_url      TEXT PRIMARY KEY,
			etag          TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			updated_at    DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating feed_validators table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Validators is a feed's cached conditional-GET headers.
type Validators struct {
	ETag         string
	LastModified string
	UpdatedAt    time.Time
}

// Get returns the cached validators for a feed URL, or ok=false on a miss.
func (s *Store) Get(feedURL string) (Validators, bool, error) {
	row := s.db.QueryRow(`
		SELECT etag, last_modified, updated_at FROM feed_validators WHERE feed_url = ?
	`, feedURL)
	var v Validators
	if err := row.Scan(&v.ETag, &v.LastModified, &v.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Validators{}, false, nil
		}
		return Validators{}, false, fmt.Errorf("reading feed validators for %s: %w", feedURL, err)
	}
	return v, true, nil
}

// Set records (or replaces) the validators for a feed URL after a fetch
// that returned a 200 with ETag/Last-Modified headers, or a 304 that
// confirmed the cached ones.
func (s *Store) Set(feedURL, etag, lastModified string) error {
	_, err := s.db.Exec(`
		INSERT INTO feed_validators (feed_url, etag, last_modified, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_url) DO UPDATE SET etag = excluded.etag,
			last_modified = excluded.last_modified, updated_at = excluded.updated_at
	`, feedURL, etag, lastModified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing feed validators for %s: %w", feedURL, err)
	}
	return nil
}

// CleanupOlderThan deletes validator rows not refreshed since cutoff, used
// by the scheduler's hourly cleanup task to drop entries for sources that
// have since been unapproved or removed.
func (s *Store) CleanupOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM feed_validators WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up feed validators older than %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned up feed validators: %w", err)
	}
	return n, nil
}
