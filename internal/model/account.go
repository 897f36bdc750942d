// Package model defines the core data structures for the ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is anything persisted in a keyed collection.
type Record interface {
	RecordID() string
}

// AccountKind is the kind of place money lives in.
type AccountKind string

// Account kinds.
const (
	AccountWallet     AccountKind = "wallet"
	AccountBank       AccountKind = "bank"
	AccountInvestment AccountKind = "investment"
	AccountCard       AccountKind = "card"
)

// Valid reports whether k is one of the known account kinds.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountWallet, AccountBank, AccountInvestment, AccountCard:
		return true
	}
	return false
}

// Account is a user-defined holder of money. Balance and CardBill are derived
// from the transaction log and are only assigned by recomputation or an
// explicit manual override.
type Account struct {
	CreatedAt      time.Time       `json:"createdAt"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Balance        decimal.Decimal `json:"balance"`
	CardBill       decimal.Decimal `json:"cardBill"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           AccountKind     `json:"kind"`
	Color          string          `json:"color"`
	Icon           string          `json:"icon"`
}

// RecordID implements Record.
func (a Account) RecordID() string { return a.ID }

// IsCard reports whether the account accrues a card bill.
func (a Account) IsCard() bool { return a.Kind == AccountCard }
