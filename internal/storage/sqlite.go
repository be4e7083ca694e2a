// Package storage provides SQLite persistence for netreport run history.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/netreport/internal/util"
)

// DatabaseFile is the history database name inside the data directory.
const DatabaseFile = "netreport.db"

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
	mu sync.RWMutex
}

// OpenInDir opens the history database in dataDir, creating the directory
// if needed.
func OpenInDir(dataDir string) (*DB, error) {
	if err := util.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return Open(filepath.Join(dataDir, DatabaseFile))
}

// Open creates and initializes the database at path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	db := &DB{DB: sqlDB}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			platform TEXT,
			started_at DATETIME NOT NULL,
			duration_ms INTEGER DEFAULT 0,
			ping_ok INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host)`,

		`CREATE TABLE IF NOT EXISTS bandwidth (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			isp TEXT,
			ip TEXT,
			latency_ms REAL,
			download_mbps INTEGER,
			upload_mbps INTEGER,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bandwidth_timestamp ON bandwidth(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_bandwidth_run_id ON bandwidth(run_id)`,

		`CREATE TABLE IF NOT EXISTS traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			target TEXT NOT NULL,
			destination TEXT,
			responding INTEGER DEFAULT 0,
			non_responding INTEGER DEFAULT 0,
			average_rtt REAL DEFAULT 0,
			mode TEXT,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_timestamp ON traces(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_target ON traces(target)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_run_id ON traces(run_id)`,

		`CREATE TABLE IF NOT EXISTS trace_hops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id INTEGER NOT NULL,
			hop_num INTEGER NOT NULL,
			ip TEXT,
			hostname TEXT,
			average_rtt REAL,
			lost INTEGER DEFAULT 0,
			FOREIGN KEY (trace_id) REFERENCES traces(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_hops_trace_id ON trace_hops(trace_id)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
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

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
}
