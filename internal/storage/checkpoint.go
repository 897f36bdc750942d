package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Checkpoint errors.
var (
	ErrCheckpointExists      = errors.New("checkpoint already exists")
	ErrCheckpointUnavailable = errors.New("checkpoints require the primary storage engine")
)

// maxAutoCheckpoints is how many automatic checkpoints are kept.
const maxAutoCheckpoints = 5

// CheckpointInfo describes a database copy on disk.
type CheckpointInfo struct {
	CreatedAt time.Time
	ID        string
	Path      string
	FileSize  int64
	IsAuto    bool
}

// CheckpointDir returns the directory holding copies of the database.
func (s *SQLiteBackend) CheckpointDir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "checkpoints")
}

// Checkpoint writes a consistent copy of the database. Automatic checkpoints
// are pruned so only the most recent few remain.
func (s *SQLiteBackend) Checkpoint(ctx context.Context, tag string, auto bool) (*CheckpointInfo, error) {
	if tag == "" {
		tag = fmt.Sprintf("checkpoint-%s", time.Now().Format("2006-01-02-150405"))
	}
	if auto {
		tag = "auto-" + tag
	}

	// Validate tag (no path traversal)
	if strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return nil, errors.New("invalid checkpoint tag: cannot contain path separators or quotes")
	}

	dir := s.CheckpointDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	destPath, err := filepath.Abs(filepath.Join(dir, tag+".db"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoint path: %w", err)
	}
	if _, err := os.Stat(destPath); err == nil {
		return nil, ErrCheckpointExists
	}
	if strings.ContainsAny(destPath, `'";`) {
		return nil, fmt.Errorf("invalid destination path: contains forbidden characters")
	}

	// Flush the WAL so the copy sees every committed write
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	// #nosec G201 - destPath is validated above to prevent SQL injection
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	info := &CheckpointInfo{
		ID:        tag,
		Path:      destPath,
		CreatedAt: stat.ModTime(),
		FileSize:  stat.Size(),
		IsAuto:    auto,
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checkpoint_metadata (id, created_at, file_size, schema_version, is_auto)
		VALUES (?, ?, ?, ?, ?)
	`, info.ID, info.CreatedAt, info.FileSize, ExpectedSchemaVersion, auto); err != nil {
		// Non-fatal: the copy is still valid without the bookkeeping row
		slog.Warn("failed to store checkpoint metadata in database", "error", err)
	}

	if auto {
		s.pruneAutoCheckpoints()
	}

	return info, nil
}

// ListCheckpoints returns the checkpoints on disk, newest first.
func (s *SQLiteBackend) ListCheckpoints() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(s.CheckpointDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var checkpoints []CheckpointInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".db")
		checkpoints = append(checkpoints, CheckpointInfo{
			ID:        id,
			Path:      filepath.Join(s.CheckpointDir(), entry.Name()),
			CreatedAt: stat.ModTime(),
			FileSize:  stat.Size(),
			IsAuto:    strings.HasPrefix(id, "auto-"),
		})
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.After(checkpoints[j].CreatedAt)
	})
	return checkpoints, nil
}

func (s *SQLiteBackend) pruneAutoCheckpoints() {
	checkpoints, err := s.ListCheckpoints()
	if err != nil {
		slog.Warn("failed to list checkpoints for cleanup", "error", err)
		return
	}

	autoCount := 0
	for _, cp := range checkpoints {
		if !cp.IsAuto {
			continue
		}
		autoCount++
		if autoCount <= maxAutoCheckpoints {
			continue
		}
		if err := os.Remove(cp.Path); err != nil {
			slog.Debug("failed to delete old auto-checkpoint during cleanup", "error", err, "checkpoint", cp.ID)
		}
	}
}

type checkpointer interface {
	Checkpoint(ctx context.Context, tag string, auto bool) (*CheckpointInfo, error)
	ListCheckpoints() ([]CheckpointInfo, error)
}

// Checkpoint copies the primary database. It returns
// ErrCheckpointUnavailable in fallback mode. A failed checkpoint never
// switches engines.
func (s *Store) Checkpoint(ctx context.Context, tag string, auto bool) (*CheckpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.primary.(checkpointer)
	if s.mode != ModePrimary || !ok {
		return nil, ErrCheckpointUnavailable
	}
	return cp.Checkpoint(ctx, tag, auto)
}

// ListCheckpoints lists the primary database copies.
func (s *Store) ListCheckpoints() ([]CheckpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.primary.(checkpointer)
	if s.mode != ModePrimary || !ok {
		return nil, ErrCheckpointUnavailable
	}
	return cp.ListCheckpoints()
}
