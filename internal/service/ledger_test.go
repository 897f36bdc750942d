package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/reconcile"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

var clock = time.Date(2025, time.April, 10, 9, 30, 0, 0, time.UTC)

type recorder struct {
	changes []Change
}

func (r *recorder) Committed(c Change) { r.changes = append(r.changes, c) }

func openStore(t *testing.T, dir string) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(dir, "balance.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return clock }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
	l := New(openStore(t, t.TempDir()), append(base, opts...)...)
	require.NoError(t, l.Load(context.Background()))
	return l
}

func mustAccount(t *testing.T, l *Ledger, name string, kind model.AccountKind, initial float64) model.Account {
	t.Helper()
	acc, err := l.CreateAccount(context.Background(), ledger.AccountInput{Name: name, Kind: kind, InitialBalance: initial})
	require.NoError(t, err)
	return acc
}

func mustSubmit(t *testing.T, l *Ledger, in ledger.TransactionInput) model.Transaction {
	t.Helper()
	if in.Datetime == "" {
		in.Datetime = "2025-04-01T10:00"
	}
	if in.CategoryID == "" {
		in.CategoryID = "cat-other"
	}
	tx, err := l.SubmitTransaction(context.Background(), in, false)
	require.NoError(t, err)
	return tx
}

func balance(t *testing.T, l *Ledger, id string) string {
	t.Helper()
	acc, ok := l.Account(id)
	require.True(t, ok, "account %s", id)
	return acc.Balance.String()
}

func TestLedger_LoadSeedsDefaults(t *testing.T) {
	l := newLedger(t, WithCurrency("EUR"))

	assert.Len(t, l.Categories(), len(model.DefaultCategories()))
	s := l.Settings()
	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, 1, s.MonthStartDay)
	assert.Equal(t, model.ThemeSystem, s.Theme)
	assert.False(t, s.HasPIN())
}

func TestLedger_LoadSeedsConfiguredMonthStart(t *testing.T) {
	l := newLedger(t, WithMonthStartDay(15))
	assert.Equal(t, 15, l.Settings().MonthStartDay)

	l = newLedger(t, WithMonthStartDay(31))
	assert.Equal(t, 1, l.Settings().MonthStartDay, "out-of-range day falls back to the default")
}

func TestLedger_NotLoaded(t *testing.T) {
	l := New(openStore(t, t.TempDir()))
	_, err := l.CreateAccount(context.Background(), ledger.AccountInput{Name: "Wallet", Kind: model.AccountWallet})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLedger_CreateAccount(t *testing.T) {
	l := newLedger(t)

	acc := mustAccount(t, l, "  Checking ", model.AccountBank, 250.5)
	assert.Equal(t, "id-1", acc.ID)
	assert.Equal(t, "Checking", acc.Name)
	assert.Equal(t, "250.5", acc.Balance.String())
	assert.Equal(t, clock, acc.CreatedAt)

	_, err := l.CreateAccount(context.Background(), ledger.AccountInput{Name: "X", Kind: model.AccountBank})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Len(t, l.Accounts(), 1)
}

func TestLedger_SubmitTransaction(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 1000)
	card := mustAccount(t, l, "Visa", model.AccountCard, 0)

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindIncome, Amount: 500, AccountFrom: bank.ID, CategoryID: "cat-salary"})
	assert.Equal(t, "1500", balance(t, l, bank.ID))

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 120.25, AccountFrom: bank.ID, CategoryID: "cat-food"})
	assert.Equal(t, "1379.75", balance(t, l, bank.ID))

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindCard, Amount: 80, AccountFrom: card.ID, CategoryID: "cat-shopping"})
	got, _ := l.Account(card.ID)
	assert.Equal(t, "0", got.Balance.String(), "card charges never move the balance")
	assert.Equal(t, "80", got.CardBill.String())

	summary := l.Summary()
	assert.Equal(t, "1379.75", summary.NetWorth.String())
	assert.Equal(t, "80", summary.CardBills.String())
	assert.Equal(t, "1299.75", summary.Available.String())

	assert.Len(t, l.Transactions(), 3)
}

func TestLedger_SubmitTransaction_Rejected(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)
	other := mustAccount(t, l, "Cash", model.AccountWallet, 0)

	tests := []struct {
		name  string
		in    ledger.TransactionInput
		field string
	}{
		{"zero amount", ledger.TransactionInput{Kind: model.KindIncome, Amount: 0, AccountFrom: bank.ID}, "amount"},
		{"unknown account", ledger.TransactionInput{Kind: model.KindIncome, Amount: 5, AccountFrom: "ghost"}, "accountFrom"},
		{"transfer to itself", ledger.TransactionInput{Kind: model.KindTransfer, Amount: 5, AccountFrom: bank.ID, AccountTo: bank.ID}, "accountTo"},
		{"transfer to unknown", ledger.TransactionInput{Kind: model.KindTransfer, Amount: 5, AccountFrom: bank.ID, AccountTo: "ghost"}, "accountTo"},
		{"card charge on bank", ledger.TransactionInput{Kind: model.KindCard, Amount: 5, AccountFrom: bank.ID}, "accountFrom"},
		{"unknown category", ledger.TransactionInput{Kind: model.KindIncome, Amount: 5, AccountFrom: other.ID, CategoryID: "cat-missing"}, "categoryId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.Datetime = "2025-04-01"
			if in.CategoryID == "" {
				in.CategoryID = "cat-other"
			}

			_, err := l.SubmitTransaction(context.Background(), in, false)

			var ve *ledger.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, l.Transactions(), "log size unchanged")
			assert.Equal(t, "100", balance(t, l, bank.ID))
		})
	}
}

func TestLedger_TransferConservesNetWorth(t *testing.T) {
	l := newLedger(t)
	a := mustAccount(t, l, "Checking", model.AccountBank, 300)
	b := mustAccount(t, l, "Savings", model.AccountInvestment, 200)
	before := l.Summary().NetWorth

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindTransfer, Amount: 75, AccountFrom: a.ID, AccountTo: b.ID, CategoryID: "cat-transfer"})

	assert.Equal(t, "225", balance(t, l, a.ID))
	assert.Equal(t, "275", balance(t, l, b.ID))
	assert.True(t, before.Equal(l.Summary().NetWorth))
}

func TestLedger_RulesRecategorise(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 0)

	_, err := l.AddRule(context.Background(), RuleInput{Contains: "uber", CategoryID: "cat-transport", Priority: 1})
	require.NoError(t, err)
	_, err = l.AddRule(context.Background(), RuleInput{Contains: "  ", CategoryID: "cat-food"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	tx := mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 12, AccountFrom: bank.ID, Note: "UBER *TRIP", CategoryID: "cat-other"})
	assert.Equal(t, "cat-transport", tx.CategoryID)

	rules := l.Rules()
	require.Len(t, rules, 1)
	require.NoError(t, l.DeleteRule(context.Background(), rules[0].ID))
	assert.ErrorIs(t, l.DeleteRule(context.Background(), rules[0].ID), common.ErrNotFound)

	tx = mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 12, AccountFrom: bank.ID, Note: "uber eats", CategoryID: "cat-food"})
	assert.Equal(t, "cat-food", tx.CategoryID)
}

func TestLedger_SuggestRules(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 0)
	for range 3 {
		mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 4, AccountFrom: bank.ID, Note: "Corner Cafe", CategoryID: "cat-food"})
	}

	suggestions := l.SuggestRules(0)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Corner Cafe", suggestions[0].Contains)
	assert.Equal(t, "cat-food", suggestions[0].CategoryID)

	_, err := l.AddRule(context.Background(), RuleInput{Contains: suggestions[0].Contains, CategoryID: suggestions[0].CategoryID})
	require.NoError(t, err)
	assert.Empty(t, l.SuggestRules(0), "covered notes are no longer suggested")
}

func TestLedger_EditTransaction(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)
	tx := mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 40, AccountFrom: bank.ID})

	later := clock.Add(time.Hour)
	l.now = func() time.Time { return later }

	edited, err := l.SubmitTransaction(context.Background(), ledger.TransactionInput{
		ID: tx.ID, Kind: model.KindIncome, Amount: 10, AccountFrom: bank.ID,
		Datetime: "2025-04-02", CategoryID: "cat-other",
	}, true)
	require.NoError(t, err)

	assert.Equal(t, clock, edited.CreatedAt)
	assert.Equal(t, later, edited.UpdatedAt)
	assert.Equal(t, "110", balance(t, l, bank.ID))
	assert.Len(t, l.Transactions(), 1)

	_, err = l.SubmitTransaction(context.Background(), ledger.TransactionInput{
		ID: "missing", Kind: model.KindIncome, Amount: 10, AccountFrom: bank.ID,
		Datetime: "2025-04-02", CategoryID: "cat-other",
	}, true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_DeleteTransaction(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)
	tx := mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 30, AccountFrom: bank.ID})
	assert.Equal(t, "70", balance(t, l, bank.ID))

	require.NoError(t, l.DeleteTransaction(context.Background(), tx.ID))
	assert.Equal(t, "100", balance(t, l, bank.ID))
	assert.Empty(t, l.Transactions())

	require.NoError(t, l.DeleteTransaction(context.Background(), tx.ID), "unknown ids are a no-op")
}

func TestLedger_DeleteAccount(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)
	cash := mustAccount(t, l, "Cash", model.AccountWallet, 0)
	tx := mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindTransfer, Amount: 10, AccountFrom: bank.ID, AccountTo: cash.ID})

	err := l.DeleteAccount(context.Background(), cash.ID)
	assert.ErrorIs(t, err, ErrHasDependentTransactions)
	assert.Len(t, l.Accounts(), 2)

	require.NoError(t, l.DeleteTransaction(context.Background(), tx.ID))
	require.NoError(t, l.DeleteAccount(context.Background(), cash.ID))
	assert.Len(t, l.Accounts(), 1)

	assert.ErrorIs(t, l.DeleteAccount(context.Background(), cash.ID), common.ErrNotFound)
}

func TestLedger_EditAccount(t *testing.T) {
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)

	name := "Main bank"
	override := 123.45
	acc, err := l.EditAccount(context.Background(), bank.ID, AccountEdit{Name: &name, Balance: &override})
	require.NoError(t, err)
	assert.Equal(t, "Main bank", acc.Name)
	assert.Equal(t, "123.45", acc.Balance.String())
	assert.Equal(t, "100", acc.InitialBalance.String())

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindIncome, Amount: 1, AccountFrom: bank.ID})
	assert.Equal(t, "101", balance(t, l, bank.ID), "next recompute derives from the log again")

	short := "B"
	_, err = l.EditAccount(context.Background(), bank.ID, AccountEdit{Name: &short})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = l.EditAccount(context.Background(), "ghost", AccountEdit{Name: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_ExportImport(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)
	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindIncome, Amount: 50, AccountFrom: bank.ID})

	doc, err := l.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.CurrentVersion, doc.Version)
	assert.Len(t, doc.Data.Transactions, 1)

	require.NoError(t, l.ResetAll(ctx))
	assert.Empty(t, l.Accounts())
	assert.NotEmpty(t, l.Categories(), "defaults seeded again")

	require.NoError(t, l.ImportSnapshot(ctx, doc, reconcile.ModeOverwrite))
	assert.Equal(t, "150", balance(t, l, bank.ID))
	assert.Len(t, l.Transactions(), 1)

	bad := *doc
	bad.Version = 99
	err = l.ImportSnapshot(ctx, &bad, reconcile.ModeMerge)
	assert.ErrorIs(t, err, reconcile.ErrInvalidVersion)
	assert.Equal(t, "150", balance(t, l, bank.ID))
}

func TestLedger_ImportMergeRecomputes(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	bank := mustAccount(t, l, "Bank", model.AccountBank, 100)

	imported := income("t-imported", bank.ID, 25)
	doc := reconcile.Export(reconcile.Dataset{Transactions: []model.Transaction{imported}}, nil, clock)

	require.NoError(t, l.ImportSnapshot(ctx, doc, reconcile.ModeMerge))
	assert.Equal(t, "125", balance(t, l, bank.ID))
	assert.Len(t, l.Accounts(), 1)
}

func TestLedger_OverwriteImportWithoutCategoriesSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	wallet := ledger.AccountInput{Name: "Wallet", Kind: model.AccountWallet, InitialBalance: 20}.Build("w1", clock)
	doc := reconcile.Export(reconcile.Dataset{Accounts: []model.Account{wallet}}, nil, clock)

	require.NoError(t, l.ImportSnapshot(ctx, doc, reconcile.ModeOverwrite))
	assert.Len(t, l.Categories(), len(model.DefaultCategories()))
	assert.Equal(t, "USD", l.Settings().Currency)

	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindExpense, Amount: 5, AccountFrom: "w1"})
	assert.Equal(t, "15", balance(t, l, "w1"))
}

func TestLedger_ReloadRecomputes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := openStore(t, dir)

	l := New(store, WithClock(func() time.Time { return clock }))
	require.NoError(t, l.Load(ctx))
	bank := mustAccount(t, l, "Bank", model.AccountBank, 10)
	mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindIncome, Amount: 5, AccountFrom: bank.ID})

	// A stale balance written behind the ledger's back is healed on load.
	stale := bank
	stale.Balance = stale.Balance.Add(stale.Balance)
	require.NoError(t, store.Put(ctx, storage.Accounts, stale))

	reloaded := New(store)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "15", balance(t, reloaded, bank.ID))
	assert.Len(t, reloaded.Transactions(), 1)
}

func TestLedger_Settings(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	cur, day, theme := "brl", 5, model.ThemeDark
	s, err := l.UpdateSettings(ctx, SettingsUpdate{Currency: &cur, MonthStartDay: &day, Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "BRL", s.Currency)
	assert.Equal(t, 5, s.MonthStartDay)
	assert.Equal(t, model.ThemeDark, s.Theme)

	bogus := "XYZ"
	_, err = l.UpdateSettings(ctx, SettingsUpdate{Currency: &bogus})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	late := 29
	_, err = l.UpdateSettings(ctx, SettingsUpdate{MonthStartDay: &late})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, 5, l.Settings().MonthStartDay)
}

func TestLedger_PIN(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	assert.True(t, l.VerifyPIN("anything"), "no PIN configured")
	assert.ErrorIs(t, l.SetPIN(ctx, "12a4"), ErrInvalidPIN)
	assert.ErrorIs(t, l.SetPIN(ctx, "123"), ErrInvalidPIN)

	require.NoError(t, l.SetPIN(ctx, "2468"))
	assert.True(t, l.Settings().HasPIN())
	assert.NotEqual(t, "2468", l.Settings().PINHash)
	assert.True(t, l.VerifyPIN("2468"))
	assert.False(t, l.VerifyPIN("1357"))

	assert.ErrorIs(t, l.ClearPIN(ctx, "1357"), common.ErrWrongPIN)
	require.NoError(t, l.ClearPIN(ctx, "2468"))
	assert.False(t, l.Settings().HasPIN())
}

func TestLedger_Attachments(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	id, err := l.AddAttachment(ctx, "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	a, err := l.Attachment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MimeType)

	_, err = l.Attachment(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_ObserverSeesCommittedChanges(t *testing.T) {
	rec := &recorder{}
	l := newLedger(t, WithObserver(rec))

	bank := mustAccount(t, l, "Bank", model.AccountBank, 0)
	_, err := l.SubmitTransaction(context.Background(), ledger.TransactionInput{Kind: model.KindIncome, Amount: -1, AccountFrom: bank.ID, Datetime: "2025-04-01", CategoryID: "cat-other"}, false)
	require.Error(t, err)
	tx := mustSubmit(t, l, ledger.TransactionInput{Kind: model.KindIncome, Amount: 1, AccountFrom: bank.ID})
	require.NoError(t, l.DeleteTransaction(context.Background(), tx.ID))

	assert.Equal(t, []Change{
		{Collection: storage.Accounts, ID: bank.ID, Op: OpPut},
		{Collection: storage.Transactions, ID: tx.ID, Op: OpPut},
		{Collection: storage.Transactions, ID: tx.ID, Op: OpDelete},
	}, rec.changes)
}

func income(id, accountID string, amount int64) model.Transaction {
	tx, err := ledger.TransactionInput{
		Kind: model.KindIncome, Amount: float64(amount), AccountFrom: accountID,
		Datetime: "2025-04-03", CategoryID: "cat-salary",
	}.Build(id, clock)
	if err != nil {
		panic(err)
	}
	return tx
}
