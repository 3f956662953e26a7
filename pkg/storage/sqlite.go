// Package storage persists workflows, executions, step results, and
// credential metadata in SQLite, with secrets held in the system keyring.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store owns the SQLite database connection shared by the repositories.
// Database location: ~/.conduit/conduit.db
type Store struct {
	db *sql.DB
}

// Open creates a store at the default database location.
func Open() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return OpenPath(filepath.Join(homeDir, ".conduit", "conduit.db"))
}

// OpenPath creates a store with a custom database path. Useful for testing.
func OpenPath(dbPath string) (*Store, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for repositories in this package.
func (s *Store) DB() *sql.DB {
	return s.db
}
