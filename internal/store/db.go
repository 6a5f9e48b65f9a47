// Package store persists learned selectors and run history in sqlite.
// The cache makes later runs against the same domain cheaper: a selector
// that worked before is tried first, and its reliability history feeds
// review tooling.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS selectors (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	domain        TEXT NOT NULL,
	field         TEXT NOT NULL,
	selector      TEXT NOT NULL,
	success_count INTEGER DEFAULT 0,
	fail_count    INTEGER DEFAULT 0,
	last_used     TEXT,
	last_failed   TEXT,
	created_at    TEXT DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(domain, field)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	status       TEXT DEFAULT 'running',
	start_time   TEXT DEFAULT CURRENT_TIMESTAMP,
	end_time     TEXT,
	total_steps  INTEGER DEFAULT 0,
	current_step INTEGER DEFAULT 0,
	succeeded    INTEGER DEFAULT 0,
	failed       INTEGER DEFAULT 0,
	degraded     INTEGER DEFAULT 0,
	attempts     INTEGER DEFAULT 0,
	retries      INTEGER DEFAULT 0,
	artifact_dir TEXT
);

CREATE TABLE IF NOT EXISTS captures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	path       TEXT NOT NULL,
	byte_count INTEGER DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_selectors_domain ON selectors(domain);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_captures_run ON captures(run_id);
`

// Store wraps the sqlite handle shared by the selector cache and run log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives an
// ephemeral store for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent captures
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Domain canonicalizes a URL (or bare host) to the cache key domain:
// scheme and path stripped, "www." removed.
func Domain(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return strings.TrimPrefix(raw, "www.")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
