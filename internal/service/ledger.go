// Package service coordinates the ledger: it owns the in-memory state, runs
// every mutation through validation, rules, storage and recomputation, and
// notifies observers once a change is fully committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// Service errors.
var (
	ErrNotLoaded                = errors.New("ledger not loaded")
	ErrHasDependentTransactions = errors.New("account has dependent transactions")
	ErrInvalidPIN               = errors.New("PIN must have between 4 and 12 digits")
)

// State is the session copy of every collection plus the metadata map.
type State = reconcile.State

// Op is the kind of a committed change.
type Op string

// Change operations.
const (
	OpPut     Op = "put"
	OpDelete  Op = "delete"
	OpReplace Op = "replace"
)

// Change describes a committed mutation. Collection is empty when the whole
// dataset was replaced.
type Change struct {
	Collection storage.Collection
	ID         string
	Op         Op
}

// Observer is notified after a mutation has been persisted and balances
// recomputed.
type Observer interface {
	Committed(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// Committed implements Observer.
func (f ObserverFunc) Committed(c Change) { f(c) }

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides how new record ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

// WithCurrency sets the currency used when none has been stored yet.
func WithCurrency(code string) Option {
	return func(l *Ledger) { l.currency = code }
}

// WithMonthStartDay sets the month start day used when none has been stored yet.
func WithMonthStartDay(day int) Option {
	return func(l *Ledger) { l.monthStartDay = day }
}

// Ledger is the only sanctioned entry point for mutating ledger state.
// Every public method is serialised by an internal mutex.
type Ledger struct {
	store         *storage.Store
	engine        *reconcile.Engine
	now           func() time.Time
	newID         func() string
	state         State
	currency      string
	observers     []Observer
	monthStartDay int
	mu            sync.Mutex
	loaded        bool
}

// New creates a ledger over store. Load must be called before use.
func New(store *storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		engine:   reconcile.NewEngine(store),
		now:      time.Now,
		newID:    uuid.NewString,
		currency: "USD",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Engine exposes the reconciliation engine, e.g. to attach progress output.
func (l *Ledger) Engine() *reconcile.Engine {
	return l.engine
}

// Load populates the session state from the store. The default categories
// and settings are seeded when absent, and balances are recomputed so stale
// persisted values never survive a restart.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.read(ctx)
	if err != nil {
		return err
	}
	l.state = state

	if err := l.seed(ctx); err != nil {
		return err
	}
	if err := l.recompute(ctx); err != nil {
		return err
	}

	l.loaded = true
	slog.Info("Ledger loaded",
		"accounts", len(l.state.Data.Accounts),
		"transactions", len(l.state.Data.Transactions),
		"storage", l.store.Status().Mode)
	return nil
}

func (l *Ledger) read(ctx context.Context) (State, error) {
	var (
		s   State
		err error
	)
	d := &s.Data
	if d.Accounts, err = storage.LoadAll[model.Account](ctx, l.store, storage.Accounts); err != nil {
		return State{}, fmt.Errorf("failed to load accounts: %w", err)
	}
	if d.Transactions, err = storage.LoadAll[model.Transaction](ctx, l.store, storage.Transactions); err != nil {
		return State{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	if d.Categories, err = storage.LoadAll[model.Category](ctx, l.store, storage.Categories); err != nil {
		return State{}, fmt.Errorf("failed to load categories: %w", err)
	}
	if d.Budgets, err = storage.LoadAll[model.Budget](ctx, l.store, storage.Budgets); err != nil {
		return State{}, fmt.Errorf("failed to load budgets: %w", err)
	}
	if d.Goals, err = storage.LoadAll[model.Goal](ctx, l.store, storage.Goals); err != nil {
		return State{}, fmt.Errorf("failed to load goals: %w", err)
	}
	if d.Boxes, err = storage.LoadAll[model.Box](ctx, l.store, storage.Boxes); err != nil {
		return State{}, fmt.Errorf("failed to load boxes: %w", err)
	}
	if d.Rules, err = storage.LoadAll[model.Rule](ctx, l.store, storage.Rules); err != nil {
		return State{}, fmt.Errorf("failed to load rules: %w", err)
	}
	if s.Settings, err = l.store.AllMeta(ctx); err != nil {
		return State{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

// seed writes the default categories and settings missing from the state.
func (l *Ledger) seed(ctx context.Context) error {
	if len(l.state.Data.Categories) == 0 {
		defaults := model.DefaultCategories()
		if err := storage.PutAll(ctx, l.store, storage.Categories, defaults); err != nil {
			return fmt.Errorf("failed to seed categories: %w", err)
		}
		l.state.Data.Categories = defaults
		slog.Debug("Seeded default categories", "count", len(defaults))
	}

	defaults := model.DefaultSettings(l.currency)
	if l.monthStartDay >= 1 && l.monthStartDay <= 28 {
		defaults.MonthStartDay = l.monthStartDay
	}
	seeds := []metaWrite{
		{key: model.SettingCurrency, value: defaults.Currency},
		{key: model.SettingMonthStartDay, value: defaults.MonthStartDay},
		{key: model.SettingTheme, value: defaults.Theme},
		{key: model.SettingReduceMotion, value: defaults.ReduceMotion},
	}
	for _, s := range seeds {
		if _, ok := l.state.Settings[s.key]; ok {
			continue
		}
		if err := l.setMeta(ctx, s.key, s.value); err != nil {
			return err
		}
	}
	return nil
}

// recompute re-derives every balance from the full log and persists the
// recomputed accounts. The in-memory state is updated before the write so it
// always matches the log even when persisting fails.
func (l *Ledger) recompute(ctx context.Context) error {
	l.state.Data.Accounts = ledger.Recompute(l.state.Data.Accounts, l.state.Data.Transactions)
	if err := storage.PutAll(ctx, l.store, storage.Accounts, l.state.Data.Accounts); err != nil {
		return fmt.Errorf("failed to save recomputed accounts: %w", err)
	}
	return nil
}

func (l *Ledger) requireLoaded() error {
	if !l.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (l *Ledger) notify(c Change) {
	for _, o := range l.observers {
		o.Committed(c)
	}
}

// Status reports which storage engine is active.
func (l *Ledger) Status() storage.Status {
	return l.store.Status()
}

// Summary aggregates the current balances.
func (l *Ledger) Summary() ledger.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledger.Totals(l.state.Data.Accounts)
}

// Accounts returns a copy of the accounts in creation order.
func (l *Ledger) Accounts() []model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.state.Data.Accounts)
}

// Account returns one account by id.
func (l *Ledger) Account(id string) (model.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := indexOf(l.state.Data.Accounts, id)
	if i < 0 {
		return model.Account{}, false
	}
	return l.state.Data.Accounts[i], true
}

// Transactions returns a copy of the log, oldest first.
func (l *Ledger) Transactions() []model.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledger.SortByDate(l.state.Data.Transactions)
}

// Categories returns a copy of the categories.
func (l *Ledger) Categories() []model.Category {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.state.Data.Categories)
}

// Rules returns a copy of the categorisation rules.
func (l *Ledger) Rules() []model.Rule {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.state.Data.Rules)
}

func indexOf[T model.Record](records []T, id string) int {
	return slices.IndexFunc(records, func(r T) bool { return r.RecordID() == id })
}

func upsert[T model.Record](records []T, r T) []T {
	if i := indexOf(records, r.RecordID()); i >= 0 {
		records[i] = r
		return records
	}
	return append(records, r)
}
