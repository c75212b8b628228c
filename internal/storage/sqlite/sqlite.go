// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	// Convert :memory: to shared memory URL for consistent behavior across
	// connections. SQLite creates separate in-memory databases for each
	// connection to ":memory:", but "file::memory:?cache=shared" creates a
	// shared in-memory database.
	dbPath := path
	if path == ":memory:" {
		dbPath = "file::memory:?cache=shared"
	}

	// Ensure directory exists (skip for memory databases)
	if !strings.Contains(dbPath, ":memory:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency and busy timeout for
	// parallel writes. _time_format=sqlite enables automatic parsing of
	// DATETIME columns to time.Time.
	connStr := dbPath
	if strings.Contains(dbPath, "?") {
		connStr += "&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Sync the number counter from existing issues so a database created
	// before the counters table (or restored from a raw copy) never hands out
	// a duplicate number.
	if err := migrateNumberCounter(db); err != nil {
		return nil, fmt.Errorf("failed to migrate number counter: %w", err)
	}

	absPath := path
	if !strings.Contains(dbPath, ":memory:") {
		absPath, err = filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: absPath,
	}, nil
}

// migrateNumberCounter initializes the issue number counter from existing rows
// when the counter row is missing or behind the max assigned number.
func migrateNumberCounter(db *sql.DB) error {
	_, err := db.Exec(`
		INSERT INTO counters (name, value)
		SELECT ?, COALESCE(MAX(number), 0) FROM issues WHERE true
		ON CONFLICT(name) DO UPDATE SET
			value = MAX(value, (SELECT COALESCE(MAX(number), 0) FROM issues))
	`, counterIssueNumber)
	if err != nil {
		return fmt.Errorf("failed to sync counter: %w", err)
	}
	return nil
}

// beginImmediate acquires a dedicated connection and starts an IMMEDIATE
// transaction on it. IMMEDIATE takes the write lock up front, which serializes
// number allocation across concurrent writers.
//
// We use raw Exec instead of BeginTx because database/sql doesn't support
// transaction modes in BeginTx, and modernc.org/sqlite's BeginTx always uses
// DEFERRED mode.
func (s *SQLiteStorage) beginImmediate(ctx context.Context) (*sql.Conn, func(), error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	finish := func() {
		// Use context.Background() so cleanup happens even if ctx is canceled.
		// After a successful COMMIT this is a no-op error and is ignored.
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		_ = conn.Close()
	}

	return conn, finish, nil
}

// commit finishes an IMMEDIATE transaction started by beginImmediate.
func commit(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// UnderlyingDB returns the underlying *sql.DB connection
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}
