package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind names the four supported ledger semantics.
type TransactionKind string

// Transaction kinds.
const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
	KindCard     TransactionKind = "card"
)

// Valid reports whether k is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer, KindCard:
		return true
	}
	return false
}

// MaxTags is the maximum number of tags kept on a transaction.
const MaxTags = 12

// ErrUnknownKind is returned when decoding a transaction with an unsupported kind.
var ErrUnknownKind = errors.New("unknown transaction kind")

// Effect describes what a transaction does to account balances. Each kind
// carries only the account references valid for it.
type Effect interface {
	Kind() TransactionKind
	// Accounts lists every account id the effect touches.
	Accounts() []string
	isEffect()
}

// Income adds money to an account.
type Income struct {
	Account string
}

// Expense removes money from an account.
type Expense struct {
	Account string
}

// Transfer moves money between two distinct accounts.
type Transfer struct {
	From string
	To   string
}

// CardCharge accrues spending on a card bill without touching its balance.
type CardCharge struct {
	Card string
}

func (Income) Kind() TransactionKind     { return KindIncome }
func (Expense) Kind() TransactionKind    { return KindExpense }
func (Transfer) Kind() TransactionKind   { return KindTransfer }
func (CardCharge) Kind() TransactionKind { return KindCard }

func (e Income) Accounts() []string     { return []string{e.Account} }
func (e Expense) Accounts() []string    { return []string{e.Account} }
func (e Transfer) Accounts() []string   { return []string{e.From, e.To} }
func (e CardCharge) Accounts() []string { return []string{e.Card} }

func (Income) isEffect()     {}
func (Expense) isEffect()    {}
func (Transfer) isEffect()   {}
func (CardCharge) isEffect() {}

// Transaction is a single entry of the ledger.
type Transaction struct {
	Date         time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Effect       Effect
	Amount       decimal.Decimal
	ID           string
	CategoryID   string
	Note         string
	AttachmentID string
	Tags         []string
}

// RecordID implements Record.
func (t Transaction) RecordID() string { return t.ID }

// Kind returns the kind of the transaction effect.
func (t Transaction) Kind() TransactionKind {
	if t.Effect == nil {
		return ""
	}
	return t.Effect.Kind()
}

// Touches reports whether the transaction references the given account.
func (t Transaction) Touches(accountID string) bool {
	if t.Effect == nil {
		return false
	}
	for _, id := range t.Effect.Accounts() {
		if id == accountID {
			return true
		}
	}
	return false
}

// transactionRecord is the flat persisted and exported shape.
type transactionRecord struct {
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Datetime     time.Time       `json:"datetime"`
	AccountTo    *string         `json:"accountTo"`
	Amount       decimal.Decimal `json:"amount"`
	ID           string          `json:"id"`
	Kind         TransactionKind `json:"kind"`
	AccountFrom  string          `json:"accountFrom"`
	CategoryID   string          `json:"categoryId"`
	Note         string          `json:"note"`
	AttachmentID string          `json:"attachmentId,omitempty"`
	Tags         []string        `json:"tags"`
}

// MarshalJSON flattens the effect into accountFrom/accountTo.
func (t Transaction) MarshalJSON() ([]byte, error) {
	rec := transactionRecord{
		ID:           t.ID,
		Amount:       t.Amount,
		Datetime:     t.Date,
		CategoryID:   t.CategoryID,
		Note:         t.Note,
		Tags:         t.Tags,
		AttachmentID: t.AttachmentID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}

	switch e := t.Effect.(type) {
	case Income:
		rec.Kind, rec.AccountFrom = KindIncome, e.Account
	case Expense:
		rec.Kind, rec.AccountFrom = KindExpense, e.Account
	case Transfer:
		to := e.To
		rec.Kind, rec.AccountFrom, rec.AccountTo = KindTransfer, e.From, &to
	case CardCharge:
		rec.Kind, rec.AccountFrom = KindCard, e.Card
	default:
		return nil, fmt.Errorf("transaction %s: %w", t.ID, ErrUnknownKind)
	}

	return json.Marshal(rec)
}

// UnmarshalJSON rebuilds the typed effect from the flat record.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var rec transactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	effect, err := NewEffect(rec.Kind, rec.AccountFrom, deref(rec.AccountTo))
	if err != nil {
		return fmt.Errorf("transaction %s: %w", rec.ID, err)
	}

	*t = Transaction{
		ID:           rec.ID,
		Amount:       rec.Amount,
		Date:         rec.Datetime,
		CategoryID:   rec.CategoryID,
		Note:         rec.Note,
		Tags:         rec.Tags,
		AttachmentID: rec.AttachmentID,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Effect:       effect,
	}
	return nil
}

// NewEffect builds the effect for kind from the flat account fields. The
// to account is ignored for every kind except transfer.
func NewEffect(kind TransactionKind, from, to string) (Effect, error) {
	switch kind {
	case KindIncome:
		return Income{Account: from}, nil
	case KindExpense:
		return Expense{Account: from}, nil
	case KindTransfer:
		return Transfer{From: from, To: to}, nil
	case KindCard:
		return CardCharge{Card: from}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
