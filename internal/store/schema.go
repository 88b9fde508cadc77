package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

const currentSchemaVersion = 3

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

const projectsTable = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	created_at TEXT DEFAULT (datetime('now')),
	UNIQUE(project_name, owner)
);
`

const codeChunksTable = `
CREATE TABLE IF NOT EXISTS code_chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	symbol_name TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	commit_hash TEXT NOT NULL DEFAULT '',
	branch_name TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	commit_timestamp TEXT NOT NULL DEFAULT '',
	created_at TEXT DEFAULT (datetime('now')),
	UNIQUE(project_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_chunks_project_path ON code_chunks(project_id, file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_project_hash ON code_chunks(project_id, content_hash);
`

const usersTable = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT UNIQUE NOT NULL,
	api_key_hash TEXT NOT NULL,
	storage_quota INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT DEFAULT (datetime('now'))
);
`

// createVectorTable creates the sqlite-vec virtual table for the given
// dimensions.
func createVectorTable(db *sql.DB, dimensions int) error {
	query := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(
			chunk_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimensions)

	_, err := db.Exec(query)
	return err
}

// initSchema brings the database to the current schema version by
// applying migrations in order. A database written by a newer version
// is rejected rather than guessed at.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("%w: found v%d, supported up to v%d", ErrSchemaTooNew, version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		log.Debug("Schema is up to date", "version", version)
		return nil
	}

	log.Debug("Migrating schema", "from", version, "to", currentSchemaVersion)

	if version < 1 {
		if err := migrateV1(db); err != nil {
			return fmt.Errorf("failed to migrate to v1: %w", err)
		}
	}
	if version < 2 {
		if err := migrateV2(db); err != nil {
			return fmt.Errorf("failed to migrate to v2: %w", err)
		}
	}
	if version < 3 {
		if err := migrateV3(db); err != nil {
			return fmt.Errorf("failed to migrate to v3: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial project and chunk tables.
func migrateV1(db *sql.DB) error {
	log.Debug("Applying migration v1")

	for _, table := range []string{projectsTable, codeChunksTable} {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return setSchemaVersion(db, 1)
}

// migrateV2 adds user accounts.
func migrateV2(db *sql.DB) error {
	log.Debug("Applying migration v2")

	if _, err := db.Exec(usersTable); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return setSchemaVersion(db, 2)
}

// migrateV3 scopes project names per owner. Databases created before
// this migration carried a global UNIQUE on project_name, and SQLite
// cannot alter a constraint in place, so those get a table rebuild.
func migrateV3(db *sql.DB) error {
	log.Debug("Applying migration v3")

	var ddl string
	err := db.QueryRow(
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'projects'",
	).Scan(&ddl)
	if err != nil {
		return fmt.Errorf("failed to read projects schema: %w", err)
	}
	if strings.Contains(ddl, "UNIQUE(project_name, owner)") {
		// Fresh database, the table already carries the per-owner
		// constraint.
		return setSchemaVersion(db, 3)
	}

	// Rebuild on a dedicated connection with foreign keys off, so the
	// drop-and-rename does not trip the code_chunks reference.
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	stmts := []string{
		`CREATE TABLE projects_migrated (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_name TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			created_at TEXT DEFAULT (datetime('now')),
			UNIQUE(project_name, owner)
		)`,
		`INSERT INTO projects_migrated (id, project_name, language, owner, created_at)
			SELECT id, project_name, language, owner, created_at FROM projects`,
		`DROP TABLE projects`,
		`ALTER TABLE projects_migrated RENAME TO projects`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild projects table: %w", err)
		}
	}
	return setSchemaVersion(db, 3)
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
