// Package storage provides persistence for nsmon: the JSON status and stats
// files shared with presentation processes, and the SQLite session history.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseFileName is the history database inside the data directory.
const DatabaseFileName = "nsmon.db"

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
	mu sync.RWMutex
}

var (
	instance *DB
	initErr  error
	once     sync.Once
)

// GetDB returns the singleton database instance.
func GetDB() *DB {
	return instance
}

// Initialize opens the process-wide history database in dataDir.
func Initialize(dataDir string) (*DB, error) {
	once.Do(func() {
		instance, initErr = Open(filepath.Join(dataDir, DatabaseFileName))
	})

	return instance, initErr
}

// Open opens a history database at path and creates the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{DB: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_seconds REAL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at)`,

		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			description TEXT,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
}

// Prune deletes closed sessions and events older than before. Open
// sessions are kept regardless of age.
func (db *DB) Prune(before time.Time) (int64, error) {
	var removed int64
	err := db.WithLock(func() error {
		res, err := db.Exec(`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, before.UTC())
		if err != nil {
			return fmt.Errorf("failed to prune sessions: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n

		res, err = db.Exec(`DELETE FROM events WHERE timestamp < ?`, before.UTC())
		if err != nil {
			return fmt.Errorf("failed to prune events: %w", err)
		}
		n, _ = res.RowsAffected()
		removed += n
		return nil
	})
	return removed, err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// WithLock executes a function with write lock.
func (db *DB) WithLock(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

// WithRLock executes a function with read lock.
func (db *DB) WithRLock(fn func() error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn()
}
