package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

const metaFile = "meta.json"

// FileBackend is the fallback engine: a directory of JSON documents, one per
// key, each rewritten atomically on every change. It is not transactional
// across keys and does not hold attachments.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

type fileRecord struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// NewFileBackend creates the fallback directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := validateString(dir, "dir"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create fallback directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory holding the documents.
func (f *FileBackend) Dir() string {
	return f.dir
}

// Close is a no-op; every write is flushed immediately.
func (f *FileBackend) Close() error {
	return nil
}

// GetAll returns every record of a collection in first-insert order.
func (f *FileBackend) GetAll(_ context.Context, c Collection) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readCollection(c)
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, len(records))
	for i, rec := range records {
		out[i] = rec.Data
	}
	return out, nil
}

// Put replaces the record with the same id in place or appends it.
func (f *FileBackend) Put(_ context.Context, c Collection, id string, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readCollection(c)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].ID == id {
			records[i].Data = data
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, fileRecord{ID: id, Data: data})
	}

	return f.writeJSON(collectionFile(c), records)
}

// Remove deletes a record; removing an absent record is not an error.
func (f *FileBackend) Remove(_ context.Context, c Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readCollection(c)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}

	return f.writeJSON(collectionFile(c), kept)
}

// ClearAll removes every collection document and the metadata document.
func (f *FileBackend) ClearAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := []string{metaFile}
	for _, c := range Collections {
		names = append(names, collectionFile(c))
	}

	for _, name := range names {
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	return nil
}

// GetMeta returns a metadata value.
func (f *FileBackend) GetMeta(_ context.Context, key string) (json.RawMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.readMeta()
	if err != nil {
		return nil, false, err
	}
	value, ok := meta[key]
	return value, ok, nil
}

// SetMeta upserts a metadata value.
func (f *FileBackend) SetMeta(_ context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.readMeta()
	if err != nil {
		return err
	}
	meta[key] = value
	return f.writeJSON(metaFile, meta)
}

// AllMeta returns the whole metadata map.
func (f *FileBackend) AllMeta(_ context.Context) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.readMeta()
}

// PutAttachment refuses binary payloads.
func (f *FileBackend) PutAttachment(_ context.Context, _ model.Attachment) (bool, error) {
	return false, nil
}

// GetAttachment always reports the attachment as absent.
func (f *FileBackend) GetAttachment(_ context.Context, _ string) (*model.Attachment, error) {
	return nil, nil
}

func collectionFile(c Collection) string {
	return string(c) + ".json"
}

func (f *FileBackend) readCollection(c Collection) ([]fileRecord, error) {
	var records []fileRecord
	if err := f.readJSON(collectionFile(c), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (f *FileBackend) readMeta() (map[string]json.RawMessage, error) {
	meta := make(map[string]json.RawMessage)
	if err := f.readJSON(metaFile, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// readJSON leaves v untouched when the document does not exist yet.
func (f *FileBackend) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// writeJSON replaces a document atomically via a temporary file and rename.
func (f *FileBackend) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
