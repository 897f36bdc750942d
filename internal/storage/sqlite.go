package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-balance-must-flow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteBackend is the primary, transactional storage engine.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteBackend opens the database at dbPath. Call Migrate before use.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteBackend{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteBackend) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// GetAll returns every record of a collection in first-insert order.
func (s *SQLiteBackend) GetAll(ctx context.Context, c Collection) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE collection = ? ORDER BY rowid`, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer func() { _ = rows.Close() }()

	records := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", c, err)
		}
		records = append(records, json.RawMessage(data))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", c, err)
	}

	return records, nil
}

// Put upserts a record inside its own transaction.
func (s *SQLiteBackend) Put(ctx context.Context, c Collection, id string, data json.RawMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, data, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(collection, id) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at
		`, string(c), id, string(data))
		if err != nil {
			return fmt.Errorf("failed to put %s/%s: %w", c, id, err)
		}
		return nil
	})
}

// Remove deletes a record; removing an absent record is not an error.
func (s *SQLiteBackend) Remove(ctx context.Context, c Collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`, string(c), id)
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", c, id, err)
	}
	return nil
}

// ClearAll empties every collection, the metadata map and the attachments.
func (s *SQLiteBackend) ClearAll(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"records", "meta", "attachments"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// GetMeta returns a metadata value.
func (s *SQLiteBackend) GetMeta(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// SetMeta upserts a metadata value.
func (s *SQLiteBackend) SetMeta(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// AllMeta returns the whole metadata map.
func (s *SQLiteBackend) AllMeta(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[key] = json.RawMessage(value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meta: %w", err)
	}

	return meta, nil
}

// PutAttachment stores a new attachment.
func (s *SQLiteBackend) PutAttachment(ctx context.Context, a model.Attachment) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, mime_type, data) VALUES (?, ?, ?)`,
		a.ID, a.MimeType, a.Data)
	if err != nil {
		return false, fmt.Errorf("failed to store attachment: %w", err)
	}
	return true, nil
}

// GetAttachment loads an attachment by id.
func (s *SQLiteBackend) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	a := model.Attachment{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT mime_type, data FROM attachments WHERE id = ?`, id).Scan(&a.MimeType, &a.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

func (s *SQLiteBackend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
