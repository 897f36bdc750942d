package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// Mode selects how an import is combined with local data.
type Mode string

// Import modes.
const (
	// ModeMerge keeps local records and lets imported records win on id collision.
	ModeMerge Mode = "merge"
	// ModeOverwrite replaces the local dataset with the imported one.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMerge:
		return ModeMerge, nil
	case ModeOverwrite:
		return ModeOverwrite, nil
	}
	return "", fmt.Errorf("unknown import mode %q (want merge or overwrite)", s)
}

// State is the dataset plus the metadata map.
type State struct {
	Settings map[string]json.RawMessage
	Data     Dataset
}

// ProgressFunc is called after each record is written.
type ProgressFunc func(done, total int)

// Engine applies imports against the persistent store.
type Engine struct {
	store    *storage.Store
	progress ProgressFunc
}

// NewEngine creates an engine writing to store.
func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// WithProgress sets a callback reporting write progress.
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	e.progress = fn
	return e
}

// Reconcile combines current with the imported document, persists the result,
// recomputes every balance over the final transaction set and persists the
// recomputed accounts. The document is checked before anything is written.
func (e *Engine) Reconcile(ctx context.Context, current State, doc *Backup, mode Mode) (State, error) {
	if err := doc.Validate(); err != nil {
		return State{}, err
	}

	var final State
	switch mode {
	case ModeOverwrite:
		final = State{Data: normalize(*doc.Data), Settings: maps.Clone(doc.Settings)}
	case ModeMerge:
		final = Merge(current, State{Data: *doc.Data, Settings: doc.Settings})
	default:
		return State{}, fmt.Errorf("unknown import mode %q", mode)
	}
	if final.Settings == nil {
		final.Settings = map[string]json.RawMessage{}
	}

	if mode == ModeOverwrite {
		if err := e.store.ClearAll(ctx); err != nil {
			return State{}, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	if err := e.persist(ctx, final); err != nil {
		return State{}, err
	}

	final.Data.Accounts = ledger.Recompute(final.Data.Accounts, final.Data.Transactions)
	if err := storage.PutAll(ctx, e.store, storage.Accounts, final.Data.Accounts); err != nil {
		return State{}, fmt.Errorf("failed to save recomputed accounts: %w", err)
	}

	slog.Info("Imported backup",
		"mode", mode,
		"accounts", len(final.Data.Accounts),
		"transactions", len(final.Data.Transactions),
		"categories", len(final.Data.Categories),
		"rules", len(final.Data.Rules))

	return final, nil
}

// Merge is the right-biased union of two states keyed by record id. Records
// of current keep their position; records only in imported are appended in
// import order. Settings merge shallowly with imported keys winning.
func Merge(current, imported State) State {
	settings := maps.Clone(current.Settings)
	if settings == nil {
		settings = map[string]json.RawMessage{}
	}
	maps.Copy(settings, imported.Settings)

	return State{
		Settings: settings,
		Data: Dataset{
			Accounts:     MergeByID(current.Data.Accounts, imported.Data.Accounts),
			Transactions: MergeByID(current.Data.Transactions, imported.Data.Transactions),
			Categories:   MergeByID(current.Data.Categories, imported.Data.Categories),
			Budgets:      MergeByID(current.Data.Budgets, imported.Data.Budgets),
			Goals:        MergeByID(current.Data.Goals, imported.Data.Goals),
			Boxes:        MergeByID(current.Data.Boxes, imported.Data.Boxes),
			Rules:        MergeByID(current.Data.Rules, imported.Data.Rules),
		},
	}
}

// MergeByID returns current with every imported record upserted by id.
func MergeByID[T model.Record](current, imported []T) []T {
	out := make([]T, 0, len(current)+len(imported))
	index := make(map[string]int, len(current)+len(imported))

	for _, r := range current {
		if i, ok := index[r.RecordID()]; ok {
			out[i] = r
			continue
		}
		index[r.RecordID()] = len(out)
		out = append(out, r)
	}
	for _, r := range imported {
		if i, ok := index[r.RecordID()]; ok {
			out[i] = r
			continue
		}
		index[r.RecordID()] = len(out)
		out = append(out, r)
	}
	return out
}

func normalize(d Dataset) Dataset {
	return Merge(State{}, State{Data: d}).Data
}

func (e *Engine) persist(ctx context.Context, s State) error {
	d := s.Data
	total := len(d.Accounts) + len(d.Transactions) + len(d.Categories) +
		len(d.Budgets) + len(d.Goals) + len(d.Boxes) + len(d.Rules) + len(s.Settings)
	done := 0
	tick := func() {
		done++
		if e.progress != nil {
			e.progress(done, total)
		}
	}

	steps := []struct {
		collection storage.Collection
		records    []model.Record
	}{
		{storage.Accounts, records(d.Accounts)},
		{storage.Transactions, records(d.Transactions)},
		{storage.Categories, records(d.Categories)},
		{storage.Budgets, records(d.Budgets)},
		{storage.Goals, records(d.Goals)},
		{storage.Boxes, records(d.Boxes)},
		{storage.Rules, records(d.Rules)},
	}
	for _, step := range steps {
		for _, r := range step.records {
			if err := e.store.Put(ctx, step.collection, r); err != nil {
				return fmt.Errorf("failed to save %s/%s: %w", step.collection, r.RecordID(), err)
			}
			tick()
		}
	}

	for key, value := range s.Settings {
		if err := e.store.SetMeta(ctx, key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
		tick()
	}
	return nil
}

func records[T model.Record](in []T) []model.Record {
	out := make([]model.Record, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}
