package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the SQLite schema. Includes migration version
// tracking to support future schema updates.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the initial database schema.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Workflows and their graph parts. Node sort_order preserves insertion
	// order, which the sorter relies on for deterministic output.
	workflowsTable := `
	CREATE TABLE workflows (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		published INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`

	nodesTable := `
	CREATE TABLE nodes (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		type TEXT NOT NULL,
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		config TEXT,
		sort_order INTEGER NOT NULL,
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);`

	connectionsTable := `
	CREATE TABLE connections (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		from_node_id TEXT NOT NULL,
		to_node_id TEXT NOT NULL,
		from_output TEXT NOT NULL DEFAULT 'main',
		to_input TEXT NOT NULL DEFAULT 'main',
		sort_order INTEGER NOT NULL,
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);`

	// Executions keyed by trigger event id. The unique index is the
	// idempotency boundary for duplicate event deliveries.
	executionsTable := `
	CREATE TABLE executions (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		event_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		output TEXT,
		error TEXT,
		error_stack TEXT
	);`

	// Durable step results, keyed by (event id, step key). A recorded
	// result is immutable: replays read it instead of redoing the work.
	stepResultsTable := `
	CREATE TABLE step_results (
		event_id TEXT NOT NULL,
		step_key TEXT NOT NULL,
		result TEXT,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (event_id, step_key)
	);`

	// Credential metadata only; the secret itself lives in the keyring.
	credentialsTable := `
	CREATE TABLE credentials (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`

	indexes := []string{
		"CREATE INDEX idx_nodes_workflow ON nodes(workflow_id, sort_order);",
		"CREATE INDEX idx_connections_workflow ON connections(workflow_id, sort_order);",
		"CREATE INDEX idx_executions_workflow ON executions(workflow_id, started_at DESC);",
		"CREATE INDEX idx_credentials_user ON credentials(user_id);",
	}

	tables := []string{
		workflowsTable,
		nodesTable,
		connectionsTable,
		executionsTable,
		stepResultsTable,
		credentialsTable,
	}
	for _, stmt := range append(tables, indexes...) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (1)"); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
