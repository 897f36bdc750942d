package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// CreateAccount validates and stores a new account. Its balance starts at the
// initial balance.
func (l *Ledger) CreateAccount(ctx context.Context, in ledger.AccountInput) (model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return model.Account{}, err
	}
	if err := ledger.ValidateAccount(in); err != nil {
		return model.Account{}, err
	}

	acc := in.Build(l.newID(), l.now())
	if err := l.store.Put(ctx, storage.Accounts, acc); err != nil {
		return model.Account{}, fmt.Errorf("failed to save account: %w", err)
	}
	l.state.Data.Accounts = append(l.state.Data.Accounts, acc)

	slog.Info("Created account", "id", acc.ID, "name", acc.Name, "kind", acc.Kind)
	l.notify(Change{Collection: storage.Accounts, ID: acc.ID, Op: OpPut})
	return acc, nil
}

// AccountEdit lists the fields to change on an account. Nil fields are kept.
// Balance is a trusted manual override; it holds until the next mutation of
// the transaction log recomputes every balance.
type AccountEdit struct {
	Name    *string            `json:"name,omitempty"`
	Kind    *model.AccountKind `json:"kind,omitempty"`
	Color   *string            `json:"color,omitempty"`
	Icon    *string            `json:"icon,omitempty"`
	Balance *float64           `json:"balance,omitempty"`
}

// EditAccount updates the presentation fields of an account. The initial
// balance cannot be changed.
func (l *Ledger) EditAccount(ctx context.Context, id string, edit AccountEdit) (model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return model.Account{}, err
	}
	i := indexOf(l.state.Data.Accounts, id)
	if i < 0 {
		return model.Account{}, common.NotFound("account", id)
	}

	acc := l.state.Data.Accounts[i]
	check := ledger.AccountInput{Name: acc.Name, Kind: acc.Kind}
	if edit.Name != nil {
		check.Name = *edit.Name
	}
	if edit.Kind != nil {
		check.Kind = *edit.Kind
	}
	if edit.Balance != nil {
		check.InitialBalance = *edit.Balance
	}
	if err := ledger.ValidateAccount(check); err != nil {
		var ve *ledger.ValidationError
		if errors.As(err, &ve) && ve.Field == "initialBalance" {
			ve.Field = "balance"
		}
		return model.Account{}, err
	}

	if edit.Kind != nil && acc.IsCard() && *edit.Kind != model.AccountCard && l.hasCardCharges(id) {
		return model.Account{}, &ledger.ValidationError{
			Field:  "kind",
			Reason: "an account with card charges must stay a card",
		}
	}

	acc.Name = strings.TrimSpace(check.Name)
	acc.Kind = check.Kind
	if edit.Color != nil {
		acc.Color = *edit.Color
	}
	if edit.Icon != nil {
		acc.Icon = *edit.Icon
	}
	if edit.Balance != nil {
		acc.Balance = decimal.NewFromFloat(*edit.Balance)
		slog.Info("Manual balance override", "account", id, "balance", acc.Balance.String())
	}

	if err := l.store.Put(ctx, storage.Accounts, acc); err != nil {
		return model.Account{}, fmt.Errorf("failed to save account: %w", err)
	}
	l.state.Data.Accounts[i] = acc

	l.notify(Change{Collection: storage.Accounts, ID: id, Op: OpPut})
	return acc, nil
}

// DeleteAccount removes an account that no transaction references.
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}
	i := indexOf(l.state.Data.Accounts, id)
	if i < 0 {
		return common.NotFound("account", id)
	}

	dependents := 0
	for _, tx := range l.state.Data.Transactions {
		if tx.Touches(id) {
			dependents++
		}
	}
	if dependents > 0 {
		return fmt.Errorf("%w: %d transaction(s) reference %s", ErrHasDependentTransactions, dependents, id)
	}

	if err := l.store.Remove(ctx, storage.Accounts, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	l.state.Data.Accounts = append(l.state.Data.Accounts[:i:i], l.state.Data.Accounts[i+1:]...)

	slog.Info("Deleted account", "id", id)
	l.notify(Change{Collection: storage.Accounts, ID: id, Op: OpDelete})
	return nil
}

func (l *Ledger) hasCardCharges(accountID string) bool {
	for _, tx := range l.state.Data.Transactions {
		if c, ok := tx.Effect.(model.CardCharge); ok && c.Card == accountID {
			return true
		}
	}
	return false
}
