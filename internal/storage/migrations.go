package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build runs against.
// Opening a database that cannot reach it is an error, which makes the store
// fall back to the JSON engine.
const ExpectedSchemaVersion = 3

// Migration is a numbered batch of DDL statements applied in one transaction.
type Migration struct {
	Description string
	Statements  []string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "records and meta",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS records (
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				data TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (collection, id)
			)`,
			`CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		},
	},
	{
		Version:     2,
		Description: "attachments",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS attachments (
				id TEXT PRIMARY KEY,
				mime_type TEXT NOT NULL,
				data BLOB NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version:     3,
		Description: "checkpoint index",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS checkpoint_metadata (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				file_size INTEGER,
				schema_version INTEGER,
				is_auto BOOLEAN DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_checkpoint_metadata_created_at ON checkpoint_metadata(created_at)`,
		},
	},
}

// Migrate applies every migration newer than the database's user_version.
func (s *SQLiteBackend) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		slog.Debug("Applied migration", "version", m.Version, "description", m.Description)
	}

	if version, err = s.schemaVersion(ctx); err != nil {
		return err
	}
	if version != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, version)
	}
	return nil
}

func (s *SQLiteBackend) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func (s *SQLiteBackend) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
