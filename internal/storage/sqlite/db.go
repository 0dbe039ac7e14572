// ABOUTME: SQLite connection handling for the evaluation history database
// ABOUTME: Uses modernc.org/sqlite so the CLI stays cgo-free
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// DB wraps a SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path, creating parent
// directories as needed
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	// WAL lets `history` read while an evaluate run is still writing
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	return connect(dsn, path, 0)
}

// OpenInMemory creates an in-memory database for tests
func OpenInMemory() (*DB, error) {
	// each pooled connection would otherwise see its own empty database
	return connect(memoryPath+"?_pragma=foreign_keys(ON)", memoryPath, 1)
}

func connect(dsn, path string, maxConns int) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}
	if _, err := conn.Exec(Schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying connection
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the database file path, or ":memory:"
func (db *DB) Path() string { return db.path }
