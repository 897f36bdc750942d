package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// ExportSnapshot builds a backup document of the whole dataset.
func (l *Ledger) ExportSnapshot(_ context.Context) (*reconcile.Backup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return nil, err
	}

	d := l.state.Data
	data := reconcile.Dataset{
		Accounts:     slices.Clone(d.Accounts),
		Transactions: slices.Clone(d.Transactions),
		Categories:   slices.Clone(d.Categories),
		Budgets:      slices.Clone(d.Budgets),
		Goals:        slices.Clone(d.Goals),
		Boxes:        slices.Clone(d.Boxes),
		Rules:        slices.Clone(d.Rules),
	}
	return reconcile.Export(data, maps.Clone(l.state.Settings), l.now()), nil
}

// ImportSnapshot merges or overwrites the dataset with a backup document.
// The document is checked before anything is written. An overwrite is
// preceded by an automatic checkpoint when the primary engine is active.
func (l *Ledger) ImportSnapshot(ctx context.Context, doc *reconcile.Backup, mode reconcile.Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	if mode == reconcile.ModeOverwrite {
		l.autoCheckpoint(ctx, "pre-import")
	}

	final, err := l.engine.Reconcile(ctx, l.state, doc, mode)
	if err != nil {
		// Reload so the session matches whatever reached the store.
		if state, readErr := l.read(ctx); readErr == nil {
			l.state = state
		}
		return fmt.Errorf("failed to import backup: %w", err)
	}
	l.state = final

	// A backup without categories or settings would leave nothing to file
	// transactions under.
	if err := l.seed(ctx); err != nil {
		return err
	}

	l.notify(Change{Op: OpReplace})
	return nil
}

// ResetAll erases every collection, the settings and the attachments, then
// seeds the defaults as on first run.
func (l *Ledger) ResetAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}

	l.autoCheckpoint(ctx, "pre-reset")

	if err := l.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	l.state = State{Settings: map[string]json.RawMessage{}}

	if err := l.seed(ctx); err != nil {
		return err
	}

	slog.Info("Ledger reset")
	l.notify(Change{Op: OpReplace})
	return nil
}

// Checkpoint copies the primary database under tag.
func (l *Ledger) Checkpoint(ctx context.Context, tag string) (*storage.CheckpointInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Checkpoint(ctx, tag, false)
}

// Checkpoints lists the database copies, newest first.
func (l *Ledger) Checkpoints() ([]storage.CheckpointInfo, error) {
	return l.store.ListCheckpoints()
}

func (l *Ledger) autoCheckpoint(ctx context.Context, reason string) {
	tag := fmt.Sprintf("%s-%s", reason, l.now().Format("2006-01-02-150405"))
	info, err := l.store.Checkpoint(ctx, tag, true)
	switch {
	case err == nil:
		slog.Info("Created checkpoint", "id", info.ID, "size", info.FileSize)
	case errors.Is(err, storage.ErrCheckpointUnavailable):
		slog.Debug("Skipping checkpoint, storage is in fallback mode", "reason", reason)
	default:
		slog.Warn("Failed to create checkpoint", "reason", reason, "error", err)
	}
}
