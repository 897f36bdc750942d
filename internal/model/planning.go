package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget caps spending for a category within a reporting month.
type Budget struct {
	CreatedAt  time.Time       `json:"createdAt"`
	Limit      decimal.Decimal `json:"limit"`
	ID         string          `json:"id"`
	CategoryID string          `json:"categoryId"`
}

// RecordID implements Record.
func (b Budget) RecordID() string { return b.ID }

// Goal tracks progress towards a savings target.
type Goal struct {
	CreatedAt time.Time       `json:"createdAt"`
	Target    decimal.Decimal `json:"target"`
	Saved     decimal.Decimal `json:"saved"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Deadline  string          `json:"deadline,omitempty"`
}

// RecordID implements Record.
func (g Goal) RecordID() string { return g.ID }

// Box is money set aside by the user outside of the account balances.
type Box struct {
	CreatedAt time.Time       `json:"createdAt"`
	Amount    decimal.Decimal `json:"amount"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
}

// RecordID implements Record.
func (b Box) RecordID() string { return b.ID }
