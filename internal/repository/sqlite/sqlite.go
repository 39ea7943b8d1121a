// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single
// file. No separate database server to install, configure, or manage. The
// metadata here (users, dataset records, chat history) is small and
// single-writer-friendly, which is exactly SQLite's sweet spot.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C
// compiler installed and cross-compilation becomes painful. modernc.org/sqlite
// is a pure Go translation of the SQLite C code — no C compiler needed, works
// everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import is a "side-effect only" import: the sqlite
	// package's init() registers itself with database/sql as a driver named
	// "sqlite". After this import, sql.Open("sqlite", ...) knows how to talk
	// to SQLite. This is Go's plugin pattern — drivers register at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// One struct implements all three repository interfaces — the tables live in
// the same file and share foreign keys, so splitting them buys nothing.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/datachat.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (great for tests, lost on close)
//
// sql.Open() does NOT actually open a connection — it just creates a pool
// manager. We call Ping() to force an immediate connection so a bad path or
// permissions issue surfaces here, not on the first query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes. WAL allows
	// concurrent reads WHILE a write is happening — needed for a web server
	// where an upload insert and a history read can overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// datasets.user_id and chat_history.{user_id,dataset_id} depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
// Wherever you call New(), immediately defer Close() — this flushes the WAL
// and releases the file lock even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is still reachable. Used by the health probe.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every start.
// For a single-file deployment that beats carrying a migration tool; if the
// schema ever needs an in-place change, switch to golang-migrate.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// columns holds the header schema as a JSON array document, e.g.
	// ["name","age","city"]. TEXT keeps SQLite simple; decoding happens in
	// the repository so callers only see []string.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			file_path     TEXT NOT NULL,
			original_name TEXT NOT NULL,
			columns       TEXT NOT NULL DEFAULT '[]',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_datasets_user_id ON datasets(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating datasets table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS chat_history (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			dataset_id TEXT NOT NULL REFERENCES datasets(id),
			question   TEXT NOT NULL,
			answer     TEXT NOT NULL DEFAULT '',
			code       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_chat_history_user_id ON chat_history(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating chat_history table: %w", err)
	}

	return nil
}
