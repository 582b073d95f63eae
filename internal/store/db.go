// Package store is the SQLite-backed persistence layer: the Text
// Index, Symbol Index, and the File/Chunk/Project metadata that ties
// indexed content back to its source. Connection setup, WAL pragmas,
// and corruption recovery follow the usual SQLite-in-Go patterns, but
// the postings schema here is plain relational tables rather than an
// FTS5 virtual table: BM25 scoring is computed by internal/bm25
// against df/tf data fetched from these tables, never delegated to
// SQLite's own bm25() ranking function.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hsearch/hsearch/internal/hserr"
)

// DB wraps a single SQLite connection shared by the Text Index, Symbol
// Index and metadata store, enforcing single-writer access via
// SetMaxOpenConns(1).
type DB struct {
	conn *sql.DB
	path string
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);
INSERT OR IGNORE INTO schema_version (version) VALUES (3);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	root_path TEXT NOT NULL,
	project_type TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	file_count INTEGER NOT NULL DEFAULT 0,
	indexed_at INTEGER NOT NULL DEFAULT 0,
	version TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	size INTEGER NOT NULL,
	mod_time INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	language TEXT NOT NULL,
	content_type TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_files_project_path ON files(project_id, path);
CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	content TEXT NOT NULL,
	raw_content TEXT NOT NULL,
	context TEXT NOT NULL,
	content_type TEXT NOT NULL,
	language TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	length INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(file_path);

CREATE TABLE IF NOT EXISTS symbols (
	chunk_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	name TEXT NOT NULL,
	name_lower TEXT NOT NULL,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	signature TEXT NOT NULL,
	doc_comment TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_symbols_name_lower ON symbols(name_lower);
CREATE INDEX IF NOT EXISTS idx_symbols_chunk ON symbols(chunk_id);

-- Text Index postings: one row per (term, chunk_id). tf is the raw term
-- frequency within that chunk; scoring itself happens in internal/bm25.
CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	tf INTEGER NOT NULL,
	PRIMARY KEY (term, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_chunk ON postings(chunk_id);

CREATE TABLE IF NOT EXISTS doc_freq (
	term TEXT PRIMARY KEY,
	df INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS doc_length (
	chunk_id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	length INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_doc_length_path ON doc_length(file_path);

CREATE TABLE IF NOT EXISTS index_stats (
	key TEXT PRIMARY KEY,
	value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// validateIntegrity opens the database read-only, runs PRAGMA
// integrity_check, and reports failure without mutating the file.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if absent) the SQLite database at path. A
// corrupted file is detected via validateIntegrity and auto-cleared:
// indexing is expected to rebuild rather than serve from a damaged
// store.
func Open(path string) (*DB, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, hserr.Wrap(hserr.Io, "store: create directory", err)
		}
		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("store_index_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, hserr.Wrap(hserr.Corruption, "store: corrupted index and cannot remove", removeErr).WithPath(path)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("store_index_cleared", slog.String("path", path), slog.String("reason", "corruption detected, reindex required"))
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "store: open database", err).WithPath(path)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, hserr.Wrap(hserr.Io, "store: set pragma", err)
		}
	}

	if _, err := conn.Exec(schemaDDL); err != nil {
		_ = conn.Close()
		return nil, hserr.Wrap(hserr.Io, "store: initialize schema", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close checkpoints the WAL and closes the connection.
func (d *DB) Close() error {
	_, _ = d.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return d.conn.Close()
}
