package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-balance-must-flow/internal/common"
	"github.com/Veraticus/the-balance-must-flow/internal/ledger"
	"github.com/Veraticus/the-balance-must-flow/internal/model"
	"github.com/Veraticus/the-balance-must-flow/internal/rules"
	"github.com/Veraticus/the-balance-must-flow/internal/storage"
)

// SubmitTransaction validates a payload, lets the rules recategorise it,
// stores it and recomputes every balance. With isEdit the payload must name
// an existing transaction, whose creation time is kept. A create that names
// an id already in the log replaces that transaction, so imports that carry
// stable ids can be repeated.
func (l *Ledger) SubmitTransaction(ctx context.Context, in ledger.TransactionInput, isEdit bool) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return model.Transaction{}, err
	}
	if err := ledger.ValidateTransaction(in); err != nil {
		return model.Transaction{}, err
	}
	if err := l.checkReferences(in); err != nil {
		return model.Transaction{}, err
	}

	id := in.ID
	existing := -1
	if id != "" {
		existing = indexOf(l.state.Data.Transactions, id)
	}
	if isEdit {
		if id == "" {
			return model.Transaction{}, &ledger.ValidationError{Field: "id", Reason: "transaction id is required for edits"}
		}
		if existing < 0 {
			return model.Transaction{}, common.NotFound("transaction", id)
		}
	}
	if id == "" {
		id = l.newID()
	}

	now := l.now()
	txn, err := in.Build(id, now)
	if err != nil {
		return model.Transaction{}, err
	}
	if existing >= 0 {
		txn.CreatedAt = l.state.Data.Transactions[existing].CreatedAt
	}
	txn = rules.Apply(txn, l.state.Data.Rules)

	if err := l.store.Put(ctx, storage.Transactions, txn); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to save transaction: %w", err)
	}
	l.state.Data.Transactions = upsert(l.state.Data.Transactions, txn)

	if err := l.recompute(ctx); err != nil {
		return model.Transaction{}, err
	}

	slog.Debug("Committed transaction",
		"id", txn.ID,
		"kind", txn.Kind(),
		"amount", txn.Amount.String(),
		"category", txn.CategoryID,
		"edit", existing >= 0)
	l.notify(Change{Collection: storage.Transactions, ID: txn.ID, Op: OpPut})
	return txn, nil
}

// checkReferences verifies the payload points at known accounts and
// categories. Card charges must target a card account.
func (l *Ledger) checkReferences(in ledger.TransactionInput) error {
	from := indexOf(l.state.Data.Accounts, in.AccountFrom)
	if from < 0 {
		return &ledger.ValidationError{Field: "accountFrom", Reason: "account not found"}
	}
	if in.Kind == model.KindTransfer && indexOf(l.state.Data.Accounts, in.AccountTo) < 0 {
		return &ledger.ValidationError{Field: "accountTo", Reason: "destination account not found"}
	}
	if in.Kind == model.KindCard && !l.state.Data.Accounts[from].IsCard() {
		return &ledger.ValidationError{Field: "accountFrom", Reason: "card charges need a card account"}
	}

	if indexOf(l.state.Data.Categories, strings.TrimSpace(in.CategoryID)) < 0 {
		return &ledger.ValidationError{Field: "categoryId", Reason: "category not found"}
	}
	return nil
}

// DeleteTransaction removes a transaction and recomputes every balance.
// Deleting an unknown id still recomputes and succeeds.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireLoaded(); err != nil {
		return err
	}

	if err := l.store.Remove(ctx, storage.Transactions, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if i := indexOf(l.state.Data.Transactions, id); i >= 0 {
		l.state.Data.Transactions = append(l.state.Data.Transactions[:i:i], l.state.Data.Transactions[i+1:]...)
	}

	if err := l.recompute(ctx); err != nil {
		return err
	}

	slog.Debug("Deleted transaction", "id", id)
	l.notify(Change{Collection: storage.Transactions, ID: id, Op: OpDelete})
	return nil
}

// AddAttachment stores a receipt or other file. The returned id is empty when
// the active storage engine does not keep attachments.
func (l *Ledger) AddAttachment(ctx context.Context, mimeType string, data []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.store.PutAttachment(ctx, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}
	if id == "" {
		slog.Warn("Attachment dropped, storage is in fallback mode", "mime_type", mimeType, "size", len(data))
	}
	return id, nil
}

// Attachment loads an attachment by id.
func (l *Ledger) Attachment(ctx context.Context, id string) (*model.Attachment, error) {
	a, found, err := l.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachment: %w", err)
	}
	if !found {
		return nil, common.NotFound("attachment", id)
	}
	return a, nil
}
