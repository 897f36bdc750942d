// Package testutil provides fixtures shared by tests that need accounts,
// transactions and a real store.
//
// Example:
//
//	store := testutil.OpenStore(t)
//	testutil.NewFixture().
//		WithAccount(testutil.Account("wallet", model.AccountWallet, "100")).
//		WithTransaction(testutil.Txn("t1", 1, "20", model.Expense{Account: "wallet"})).
//		Seed(t, store)
package testutil

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// BaseTime is the reference instant fixtures are dated from.
var BaseTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// OpenStore opens a store on a fresh database in a temporary directory. It
// is closed when the test ends.
func OpenStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(context.Background(), storage.Config{
		Path:        filepath.Join(dir, "balance.db"),
		FallbackDir: filepath.Join(dir, "fallback"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Failed to close store: %v", err)
		}
	})
	return store
}

// Account returns an account named after its id whose balance equals its
// initial balance.
func Account(id string, kind model.AccountKind, initial string) model.Account {
	d := decimal.RequireFromString(initial)
	return model.Account{
		ID:             id,
		Name:           id,
		Kind:           kind,
		InitialBalance: d,
		Balance:        d,
		CardBill:       decimal.Zero,
		CreatedAt:      BaseTime,
	}
}

// Txn returns a transaction dated hours after BaseTime.
func Txn(id string, hours int, amount string, effect model.Effect) model.Transaction {
	at := BaseTime.Add(time.Duration(hours) * time.Hour)
	return model.Transaction{
		ID:         id,
		Effect:     effect,
		Amount:     decimal.RequireFromString(amount),
		Date:       at,
		CategoryID: "cat-other",
		Tags:       []string{},
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

// Balances flattens accounts to id → {balance, card bill} strings so
// comparisons ignore decimal internals.
func Balances(accounts []model.Account) map[string][2]string {
	out := make(map[string][2]string, len(accounts))
	for _, acc := range accounts {
		out[acc.ID] = [2]string{acc.Balance.String(), acc.CardBill.String()}
	}
	return out
}

// Fixture collects records to write to a store.
type Fixture struct {
	Settings     map[string]any
	Accounts     []model.Account
	Transactions []model.Transaction
	Categories   []model.Category
	Rules        []model.Rule
}

// NewFixture returns an empty fixture.
func NewFixture() *Fixture {
	return &Fixture{Settings: map[string]any{}}
}

// WithAccount adds accounts.
func (f *Fixture) WithAccount(accounts ...model.Account) *Fixture {
	f.Accounts = append(f.Accounts, accounts...)
	return f
}

// WithTransaction adds transactions.
func (f *Fixture) WithTransaction(txs ...model.Transaction) *Fixture {
	f.Transactions = append(f.Transactions, txs...)
	return f
}

// WithDefaultCategories adds the seed categories.
func (f *Fixture) WithDefaultCategories() *Fixture {
	f.Categories = append(f.Categories, model.DefaultCategories()...)
	return f
}

// WithRule adds rules.
func (f *Fixture) WithRule(rules ...model.Rule) *Fixture {
	f.Rules = append(f.Rules, rules...)
	return f
}

// WithSetting adds a metadata entry.
func (f *Fixture) WithSetting(key string, value any) *Fixture {
	f.Settings[key] = value
	return f
}

// RawSettings returns the settings encoded the way the store returns them.
func (f *Fixture) RawSettings(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(f.Settings))
	for k, v := range f.Settings {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = data
	}
	return out
}

// Seed writes every record of the fixture to store.
func (f *Fixture) Seed(t *testing.T, store *storage.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, storage.PutAll(ctx, store, storage.Accounts, f.Accounts))
	require.NoError(t, storage.PutAll(ctx, store, storage.Transactions, f.Transactions))
	require.NoError(t, storage.PutAll(ctx, store, storage.Categories, f.Categories))
	require.NoError(t, storage.PutAll(ctx, store, storage.Rules, f.Rules))
	for k, v := range f.Settings {
		require.NoError(t, store.SetMeta(ctx, k, v))
	}
}
