package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// Mode is the engine currently serving the store.
type Mode int

// Store modes. The only transition is ModePrimary -> ModeFallback.
const (
	ModePrimary Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	if m == ModePrimary {
		return "primary"
	}
	return "fallback"
}

// Status describes which engine is active.
type Status struct {
	Since         time.Time
	Reason        string
	Mode          Mode
	PrimaryActive bool
}

// FallbackFactory creates the fallback engine on first use.
type FallbackFactory func() (Backend, error)

// Store is the persistent store used by the rest of the application. It
// serves every operation from the primary engine until an operation fails,
// then switches to the fallback for the rest of the process lifetime and
// re-runs the failed operation there. Every operation holds the store lock,
// so callers never observe the switch half done.
type Store struct {
	since       time.Time
	primary     Backend
	fallback    Backend
	newFallback FallbackFactory
	newID       func() string
	reason      string
	mode        Mode
	mu          sync.Mutex
}

// New creates a store serving from primary. A nil primary starts the store
// directly in fallback mode.
func New(primary Backend, newFallback FallbackFactory) (*Store, error) {
	if newFallback == nil {
		return nil, fmt.Errorf("%w: fallback factory", ErrNilParameter)
	}

	s := &Store{
		primary:     primary,
		newFallback: newFallback,
		newID:       uuid.NewString,
		since:       time.Now(),
	}

	if primary == nil {
		fb, err := newFallback()
		if err != nil {
			return nil, fmt.Errorf("failed to open fallback storage: %w", err)
		}
		s.fallback = fb
		s.mode = ModeFallback
		s.reason = "primary storage unavailable"
	}

	return s, nil
}

// Config locates the storage engines on disk.
type Config struct {
	// Path is the SQLite database file.
	Path string
	// FallbackDir holds the JSON documents used when SQLite is unusable.
	// Defaults to a "fallback" directory next to Path.
	FallbackDir string
}

// Open opens the SQLite database at cfg.Path, degrading to the file
// fallback when it cannot be opened or migrated.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	fallbackDir := cfg.FallbackDir
	if fallbackDir == "" {
		fallbackDir = filepath.Join(filepath.Dir(cfg.Path), "fallback")
	}
	newFallback := func() (Backend, error) {
		return NewFileBackend(fallbackDir)
	}

	primary, err := openSQLite(ctx, cfg.Path)
	if err != nil {
		slog.Warn("Primary storage unavailable, using fallback",
			"path", cfg.Path,
			"fallback_dir", fallbackDir,
			"error", err)
		s, fbErr := New(nil, newFallback)
		if fbErr != nil {
			return nil, fbErr
		}
		s.reason = err.Error()
		return s, nil
	}

	return New(primary, newFallback)
}

func openSQLite(ctx context.Context, path string) (Backend, error) {
	db, err := NewSQLiteBackend(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Status reports which engine is active.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		PrimaryActive: s.mode == ModePrimary,
		Mode:          s.mode,
		Reason:        s.reason,
		Since:         s.since,
	}
}

// Close releases the active engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModePrimary {
		return s.primary.Close()
	}
	return s.fallback.Close()
}

// GetAll returns the raw records of a collection.
func (s *Store) GetAll(ctx context.Context, c Collection) ([]json.RawMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCollection(c); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	err := s.run(ctx, "get_all", func(b Backend) error {
		var err error
		records, err = b.GetAll(ctx, c)
		return err
	})
	return records, err
}

// Put upserts a record by its id.
func (s *Store) Put(ctx context.Context, c Collection, r model.Record) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateString(r.RecordID(), "id"); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c, r.RecordID(), err)
	}

	return s.run(ctx, "put", func(b Backend) error {
		return b.Put(ctx, c, r.RecordID(), data)
	})
}

// Remove deletes a record by id. Removing an absent record succeeds.
func (s *Store) Remove(ctx context.Context, c Collection, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}

	return s.run(ctx, "remove", func(b Backend) error {
		return b.Remove(ctx, c, id)
	})
}

// ClearAll empties every collection and the metadata map.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.run(ctx, "clear_all", func(b Backend) error {
		return b.ClearAll(ctx)
	})
}

// GetMeta returns a metadata value.
func (s *Store) GetMeta(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}

	var (
		value json.RawMessage
		found bool
	)
	err := s.run(ctx, "get_meta", func(b Backend) error {
		var err error
		value, found, err = b.GetMeta(ctx, key)
		return err
	})
	return value, found, err
}

// SetMeta stores v, encoded as JSON, under key.
func (s *Store) SetMeta(ctx context.Context, key string, v any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode meta %s: %w", key, err)
	}

	return s.run(ctx, "set_meta", func(b Backend) error {
		return b.SetMeta(ctx, key, data)
	})
}

// AllMeta returns the whole metadata map.
func (s *Store) AllMeta(ctx context.Context) (map[string]json.RawMessage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var meta map[string]json.RawMessage
	err := s.run(ctx, "all_meta", func(b Backend) error {
		var err error
		meta, err = b.AllMeta(ctx)
		return err
	})
	return meta, err
}

// PutAttachment stores a binary attachment and returns its id. When the
// active engine cannot hold attachments the id is empty and err is nil.
func (s *Store) PutAttachment(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("%w: data", ErrNilParameter)
	}

	a := model.Attachment{ID: s.newID(), MimeType: mimeType, Data: data}
	var stored bool
	err := s.run(ctx, "put_attachment", func(b Backend) error {
		var err error
		stored, err = b.PutAttachment(ctx, a)
		return err
	})
	if err != nil || !stored {
		return "", err
	}
	return a.ID, nil
}

// GetAttachment loads an attachment. found is false when it is absent or the
// active engine does not hold attachments.
func (s *Store) GetAttachment(ctx context.Context, id string) (*model.Attachment, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}

	var a *model.Attachment
	err := s.run(ctx, "get_attachment", func(b Backend) error {
		var err error
		a, err = b.GetAttachment(ctx, id)
		return err
	})
	return a, a != nil, err
}

// run executes op against the active engine. A primary failure switches the
// store to the fallback and re-runs op there. Errors caused by the caller's
// context are returned as-is and never trigger the switch.
func (s *Store) run(ctx context.Context, op string, fn func(Backend) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModePrimary {
		err := fn(s.primary)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if degradeErr := s.degrade(ctx, op, err); degradeErr != nil {
			return degradeErr
		}
	}

	return fn(s.fallback)
}

// degrade performs the one-way switch to the fallback. Must be called with
// s.mu held.
func (s *Store) degrade(ctx context.Context, op string, cause error) error {
	fb, err := s.newFallback()
	if err != nil {
		return fmt.Errorf("failed to open fallback storage after %s failure (%v): %w", op, cause, err)
	}

	copied := copyReadable(ctx, s.primary, fb)
	if closeErr := s.primary.Close(); closeErr != nil {
		slog.Debug("Failed to close primary storage", "error", closeErr)
	}

	s.primary = nil
	s.fallback = fb
	s.mode = ModeFallback
	s.reason = cause.Error()
	s.since = time.Now()

	slog.Warn("Primary storage failed, switched to fallback",
		"operation", op,
		"error", cause,
		"records_copied", copied)

	return nil
}

// primarySnapshot is what a failing primary could still return. A nil
// collection entry means the collection could not be read.
type primarySnapshot struct {
	records  map[Collection][]json.RawMessage
	meta     map[string]json.RawMessage
	complete bool
}

func readSnapshot(ctx context.Context, from Backend) primarySnapshot {
	snap := primarySnapshot{records: make(map[Collection][]json.RawMessage), complete: true}
	for _, c := range Collections {
		records, err := from.GetAll(ctx, c)
		if err != nil {
			slog.Debug("Cannot read collection from primary", "collection", c, "error", err)
			snap.complete = false
			continue
		}
		snap.records[c] = records
	}
	meta, err := from.AllMeta(ctx)
	if err != nil {
		slog.Debug("Cannot read metadata from primary", "error", err)
		snap.complete = false
	} else {
		snap.meta = meta
	}
	return snap
}

// copyReadable makes the fallback mirror whatever the failing primary can
// still return. Leftovers from an earlier fallback session are discarded for
// every collection the primary could read; when the primary is fully readable
// the fallback is cleared first. Write errors are logged and skipped.
func copyReadable(ctx context.Context, from, to Backend) int {
	snap := readSnapshot(ctx, from)

	if snap.complete {
		if err := to.ClearAll(ctx); err != nil {
			slog.Warn("Failed to clear fallback storage before copy", "error", err)
		}
	}

	copied := 0
	for _, c := range Collections {
		records, ok := snap.records[c]
		if !ok {
			continue
		}
		keep := make(map[string]bool, len(records))
		for _, raw := range records {
			id := recordID(raw)
			if id == "" {
				continue
			}
			keep[id] = true
			if err := to.Put(ctx, c, id, raw); err != nil {
				slog.Debug("Cannot copy record to fallback", "collection", c, "id", id, "error", err)
				continue
			}
			copied++
		}
		if !snap.complete {
			dropStale(ctx, to, c, keep)
		}
	}

	for key, value := range snap.meta {
		if err := to.SetMeta(ctx, key, value); err == nil {
			copied++
		}
	}
	return copied
}

// dropStale removes fallback records of c that the primary does not hold.
func dropStale(ctx context.Context, b Backend, c Collection, keep map[string]bool) {
	existing, err := b.GetAll(ctx, c)
	if err != nil {
		return
	}
	for _, raw := range existing {
		if id := recordID(raw); id != "" && !keep[id] {
			if err := b.Remove(ctx, c, id); err != nil {
				slog.Debug("Cannot drop stale fallback record", "collection", c, "id", id, "error", err)
			}
		}
	}
}

func recordID(raw json.RawMessage) string {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ""
	}
	return ref.ID
}

// LoadAll decodes every record of a collection into T.
func LoadAll[T any](ctx context.Context, s *Store, c Collection) ([]T, error) {
	records, err := s.GetAll(ctx, c)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(records))
	for i, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record %d: %w", c, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PutAll upserts records one by one.
func PutAll[T model.Record](ctx context.Context, s *Store, c Collection, records []T) error {
	for _, r := range records {
		if err := s.Put(ctx, c, r); err != nil {
			return err
		}
	}
	return nil
}
