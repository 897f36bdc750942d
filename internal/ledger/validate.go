// Package ledger validates ledger payloads and derives account balances from
// the transaction log.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-balance-must-flow/internal/model"
)

// ErrValidation matches every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the first rule a payload violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AccountInput is the caller-supplied payload for a new account.
type AccountInput struct {
	Name           string            `json:"name"`
	Kind           model.AccountKind `json:"kind"`
	Color          string            `json:"color"`
	Icon           string            `json:"icon"`
	InitialBalance float64           `json:"initialBalance"`
}

// ValidateAccount checks an account payload before it is admitted.
func ValidateAccount(in AccountInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalid("name", "account name is required")
	}
	if len([]rune(name)) < 2 {
		return invalid("name", "account name must have at least 2 characters")
	}
	if !in.Kind.Valid() {
		return invalid("kind", fmt.Sprintf("invalid account kind %q", in.Kind))
	}
	if !finite(in.InitialBalance) {
		return invalid("initialBalance", "initial balance must be a finite number")
	}
	return nil
}

// Build turns a validated payload into an account whose balance starts at
// the initial balance.
func (in AccountInput) Build(id string, now time.Time) model.Account {
	initial := decimal.NewFromFloat(in.InitialBalance)
	return model.Account{
		ID:             id,
		Name:           strings.TrimSpace(in.Name),
		Kind:           in.Kind,
		Color:          in.Color,
		Icon:           in.Icon,
		InitialBalance: initial,
		Balance:        initial,
		CardBill:       decimal.Zero,
		CreatedAt:      now,
	}
}

// TransactionInput is the caller-supplied payload for a transaction. It uses
// the flat form a form or API produces; Build converts it to the typed form.
type TransactionInput struct {
	ID           string                `json:"id,omitempty"`
	Kind         model.TransactionKind `json:"kind"`
	Datetime     string                `json:"datetime"`
	AccountFrom  string                `json:"accountFrom"`
	AccountTo    string                `json:"accountTo,omitempty"`
	CategoryID   string                `json:"categoryId"`
	Note         string                `json:"note"`
	AttachmentID string                `json:"attachmentId,omitempty"`
	Tags         []string              `json:"tags,omitempty"`
	Amount       float64               `json:"amount"`
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDatetime parses the datetime formats accepted in payloads.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// ValidateTransaction checks a transaction payload. Rules are evaluated in
// the order kind, amount, datetime, accounts, category and the first
// violation is returned.
func ValidateTransaction(in TransactionInput) error {
	if !in.Kind.Valid() {
		return invalid("kind", fmt.Sprintf("invalid transaction kind %q", in.Kind))
	}
	if !finite(in.Amount) || in.Amount <= 0 {
		return invalid("amount", "amount must be greater than zero")
	}
	if _, err := ParseDatetime(in.Datetime); err != nil {
		return invalid("datetime", "date and time are invalid")
	}

	if in.Kind == model.KindTransfer {
		if in.AccountFrom == "" || in.AccountTo == "" {
			return invalid("accountTo", "transfers need a source and a destination account")
		}
		if in.AccountFrom == in.AccountTo {
			return invalid("accountTo", "source and destination accounts must be different")
		}
	} else if in.AccountFrom == "" {
		return invalid("accountFrom", "account is required")
	}

	if strings.TrimSpace(in.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	return nil
}

// Build converts a validated payload into a typed transaction. The caller
// must run ValidateTransaction first.
func (in TransactionInput) Build(id string, now time.Time) (model.Transaction, error) {
	date, err := ParseDatetime(in.Datetime)
	if err != nil {
		return model.Transaction{}, invalid("datetime", "date and time are invalid")
	}
	effect, err := model.NewEffect(in.Kind, in.AccountFrom, in.AccountTo)
	if err != nil {
		return model.Transaction{}, invalid("kind", err.Error())
	}

	return model.Transaction{
		ID:           id,
		Effect:       effect,
		Amount:       decimal.NewFromFloat(in.Amount),
		Date:         date,
		CategoryID:   strings.TrimSpace(in.CategoryID),
		Note:         strings.TrimSpace(in.Note),
		Tags:         NormalizeTags(in.Tags),
		AttachmentID: in.AttachmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckAccount applies the account rules to a stored record, as read from a
// backup.
func CheckAccount(a model.Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "account name is required")
	}
	if !a.Kind.Valid() {
		return invalid("kind", fmt.Sprintf("invalid account kind %q", a.Kind))
	}
	return nil
}

// CheckTransaction applies the transaction rules to a stored record, as read
// from a backup.
func CheckTransaction(t model.Transaction) error {
	if t.Effect == nil || !t.Kind().Valid() {
		return invalid("kind", fmt.Sprintf("invalid transaction kind %q", t.Kind()))
	}
	if !t.Amount.IsPositive() {
		return invalid("amount", "amount must be greater than zero")
	}
	if t.Date.IsZero() {
		return invalid("datetime", "date and time are invalid")
	}
	for _, id := range t.Effect.Accounts() {
		if strings.TrimSpace(id) == "" {
			return invalid("accountFrom", "account is required")
		}
	}
	if tr, ok := t.Effect.(model.Transfer); ok && tr.From == tr.To {
		return invalid("accountTo", "source and destination accounts must be different")
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	return nil
}

// NormalizeTags trims tags, drops empty and repeated ones, and keeps at most
// model.MaxTags in their original order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == model.MaxTags {
			break
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
