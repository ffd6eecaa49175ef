package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Import sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// DB wraps the SQLite simulation database connection. The schema inside it is
// owned by the transformation engine; the navigator only reads and inspects.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration options
type Config struct {
	Path            string        // Database file path
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	BusyTimeout     time.Duration // SQLite busy timeout
}

// DefaultConfig returns sensible defaults for database configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// Open creates a new database connection with optimized settings
// Enables WAL mode, foreign keys, and sets busy timeout for better concurrency
func Open(path string) (*DB, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig creates a new database connection with custom configuration
func OpenWithConfig(cfg Config) (*DB, error) {
	// Build DSN with pragmas
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	// Open database connection
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: cfg.Path,
	}

	// Verify WAL mode is enabled
	var journalMode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled (got %s)", journalMode)
	}

	// Verify foreign keys are enabled
	var foreignKeys int
	if err := db.conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if foreignKeys != 1 {
		conn.Close()
		return nil, fmt.Errorf("foreign keys not enabled")
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
// Use with caution - prefer using the DB methods for safety
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Health performs a health check on the database connection
func (db *DB) Health(ctx context.Context) error {
	// Check if connection is alive
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	// Verify we can query
	var result int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("unexpected query result: %d", result)
	}

	return nil
}

// ProbeCorruption runs an integrity check against the database file. A failed
// check is unrecoverable by the navigator: the operator must restore from
// backup or delete the file and re-initialize.
func (db *DB) ProbeCorruption(ctx context.Context) error {
	var result string
	err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result)
	if err != nil {
		if IsCorruptionError(err) {
			return types.WrapError(types.DB_CORRUPT,
				fmt.Sprintf("database file %s failed integrity check", db.path), err)
		}
		return fmt.Errorf("integrity check failed to run: %w", err)
	}

	if result != "ok" {
		return types.NewError(types.DB_CORRUPT,
			fmt.Sprintf("database file %s failed integrity check: %s", db.path, result))
	}

	return nil
}

// IsCorruptionError reports whether err looks like SQLite-level file
// corruption rather than a transient or usage error.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := types.CodeOf(err); ok && code == types.DB_CORRUPT {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image is malformed")
}

// Stats is a snapshot of the connection pool, surfaced by `planwise status`
// so an operator can see whether validation queries are contending for
// connections.
type Stats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
}

// Stats returns connection pool statistics.
func (db *DB) Stats() Stats {
	s := db.conn.Stats()
	return Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}
}

// FlushWAL moves accumulated WAL data into the main database file so the
// file on disk is complete when handed to downstream analysis tools.
func (db *DB) FlushWAL(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint failed: %w", err)
	}
	return nil
}

// QueryContext wraps the underlying connection's QueryContext
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext wraps the underlying connection's QueryRowContext
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// ExecContext wraps the underlying connection's ExecContext
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}
